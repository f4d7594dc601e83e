package insight

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var recommendations = []string{
	"Bundle products by time of day (breakfast, lunch, evening) to lift basket size outside peak hours.",
	"Apply margin-aware pricing: review discounts on low-margin items before cutting price on best sellers.",
	"Vary the menu and assortment by region so each city stocks what its customers actually buy.",
}

// Fallback computes the narrative locally when no provider produced one. It
// never fails and never returns an empty string.
type Fallback struct {
	lang language.Tag
}

func NewFallback(lang language.Tag) *Fallback {
	return &Fallback{lang: lang}
}

func (f *Fallback) Generate(in *Input) string {
	if in == nil {
		in = &Input{}
	}
	p := message.NewPrinter(f.lang)
	var sb strings.Builder

	sb.WriteString("## Highlights\n")
	p.Fprintf(&sb, "- Total revenue: %.2f.\n", in.Summary.TotalRevenue)
	if city, ok := topCity(in.Cities); ok {
		p.Fprintf(&sb, "- Best-performing city: %s with revenue %.2f and a %.1f%% profit margin.\n",
			displayName(city.City), city.TotalRevenue, city.ProfitMargin)
	} else {
		sb.WriteString("- No city data available.\n")
	}
	if store, ok := topStore(in.Stores); ok {
		p.Fprintf(&sb, "- Best-performing store: %s with revenue %.2f.\n",
			displayName(store.StoreName), store.TotalRevenue)
	} else {
		sb.WriteString("- No store data available.\n")
	}

	sb.WriteString("\n## Risks\n")
	if city, ok := lowestMarginCity(in.Cities); ok {
		p.Fprintf(&sb, "- Lowest profit margin: %s at %.1f%%.\n", displayName(city.City), city.ProfitMargin)
		p.Fprintf(&sb, "- Average profit margin across %d cities: %.1f%%.\n", len(in.Cities), averageMargin(in.Cities))
	} else {
		sb.WriteString("- No city margin data available to assess risk.\n")
	}

	sb.WriteString("\n## Recommendations\n")
	for _, r := range recommendations {
		sb.WriteString("- ")
		sb.WriteString(r)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// topCity returns the highest-revenue city. Upstream usually sends cities
// sorted already; the stable sort keeps that order on ties.
func topCity(cities []CityMetrics) (CityMetrics, bool) {
	if len(cities) == 0 {
		return CityMetrics{}, false
	}
	sorted := make([]CityMetrics, len(cities))
	copy(sorted, cities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalRevenue > sorted[j].TotalRevenue
	})
	return sorted[0], true
}

func topStore(stores []StoreMetrics) (StoreMetrics, bool) {
	if len(stores) == 0 {
		return StoreMetrics{}, false
	}
	sorted := make([]StoreMetrics, len(stores))
	copy(sorted, stores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalRevenue > sorted[j].TotalRevenue
	})
	return sorted[0], true
}

// lowestMarginCity returns the first city with the minimum profit margin.
func lowestMarginCity(cities []CityMetrics) (CityMetrics, bool) {
	if len(cities) == 0 {
		return CityMetrics{}, false
	}
	lowest := cities[0]
	for _, c := range cities[1:] {
		if c.ProfitMargin < lowest.ProfitMargin {
			lowest = c
		}
	}
	return lowest, true
}

func averageMargin(cities []CityMetrics) float64 {
	if len(cities) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cities {
		sum += c.ProfitMargin
	}
	return sum / float64(len(cities))
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "(unnamed)"
	}
	return name
}
