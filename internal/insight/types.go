package insight

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleProvider is the provider id reported when the narrative was computed
// locally.
const RuleProvider = "rule"

// Input is the already-aggregated dashboard data an insight is generated
// from. Cities usually arrive best-performing first.
type Input struct {
	Summary AggregateMetrics `json:"summary"`
	Cities  []CityMetrics    `json:"cities"`
	Stores  []StoreMetrics   `json:"stores"`
	Trends  []TrendPoint     `json:"trends,omitempty"`
}

// AggregateMetrics, CityMetrics, StoreMetrics and TrendPoint keep any field
// they do not model in Extra and write it back out when marshalled.
type AggregateMetrics struct {
	TotalRevenue float64
	Extra        map[string]any
}

type CityMetrics struct {
	City         string
	TotalRevenue float64
	ProfitMargin float64 // percent, 0-100
	Extra        map[string]any
}

type StoreMetrics struct {
	StoreName    string
	TotalRevenue float64
	Extra        map[string]any
}

type TrendPoint struct {
	Period       string
	TotalRevenue float64
	Extra        map[string]any
}

type Output struct {
	Provider string `json:"provider"`
	Content  string `json:"content"`

	// Attempts lists every provider tried for this output, in order.
	Attempts []Attempt `json:"-"`
}

type Attempt struct {
	Provider string
	Outcome  string // "success" or a provider.Kind
	Latency  time.Duration
}

const OutcomeSuccess = "success"

func (m AggregateMetrics) MarshalJSON() ([]byte, error) {
	return encodeRecord(m.Extra, map[string]any{
		"totalRevenue": m.TotalRevenue,
	})
}

func (m *AggregateMetrics) UnmarshalJSON(data []byte) error {
	extra, err := decodeRecord(data, map[string]any{
		"totalRevenue": &m.TotalRevenue,
	})
	m.Extra = extra
	return err
}

func (c CityMetrics) MarshalJSON() ([]byte, error) {
	return encodeRecord(c.Extra, map[string]any{
		"city":         c.City,
		"totalRevenue": c.TotalRevenue,
		"profitMargin": c.ProfitMargin,
	})
}

func (c *CityMetrics) UnmarshalJSON(data []byte) error {
	extra, err := decodeRecord(data, map[string]any{
		"city":         &c.City,
		"totalRevenue": &c.TotalRevenue,
		"profitMargin": &c.ProfitMargin,
	})
	c.Extra = extra
	return err
}

func (s StoreMetrics) MarshalJSON() ([]byte, error) {
	return encodeRecord(s.Extra, map[string]any{
		"store_name":   s.StoreName,
		"totalRevenue": s.TotalRevenue,
	})
}

func (s *StoreMetrics) UnmarshalJSON(data []byte) error {
	extra, err := decodeRecord(data, map[string]any{
		"store_name":   &s.StoreName,
		"totalRevenue": &s.TotalRevenue,
	})
	s.Extra = extra
	return err
}

func (p TrendPoint) MarshalJSON() ([]byte, error) {
	return encodeRecord(p.Extra, map[string]any{
		"period":       p.Period,
		"totalRevenue": p.TotalRevenue,
	})
}

func (p *TrendPoint) UnmarshalJSON(data []byte) error {
	extra, err := decodeRecord(data, map[string]any{
		"period":       &p.Period,
		"totalRevenue": &p.TotalRevenue,
	})
	p.Extra = extra
	return err
}

// decodeRecord decodes the keys listed in known into their targets and
// returns every other key.
func decodeRecord(data []byte, known map[string]any) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var extra map[string]any
	for key, value := range raw {
		if dst, ok := known[key]; ok {
			if err := json.Unmarshal(value, dst); err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = v
	}
	return extra, nil
}

// encodeRecord merges modelled fields over extra ones. encoding/json sorts
// map keys, so the output is stable.
func encodeRecord(extra, fields map[string]any) ([]byte, error) {
	merged := make(map[string]any, len(extra)+len(fields))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
