package usage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	id        string
	createdAt time.Time
	err       error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.id
	*dest[1].(*time.Time) = r.createdAt
	return nil
}

// fakeRows serves rows in order; Scan copies each value into its target.
type fakeRows struct {
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}

type fakeDB struct {
	row      fakeRow
	rows     *fakeRows
	queryErr error
	execErr  error
	lastSQL  string
	lastArgs []any
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = sql, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = sql, args
	return f.row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = sql, args
	return pgconn.CommandTag{}, f.execErr
}

func TestLogAttempt(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeDB{row: fakeRow{id: "a1", createdAt: created}}
	store := NewPostgresStore(db)

	log := &AttemptLog{RequestID: "req-1", Provider: "gemini", Outcome: "timeout", LatencyMs: 15000}
	require.NoError(t, store.LogAttempt(context.Background(), log))

	assert.Equal(t, "a1", log.ID)
	assert.Equal(t, created, log.CreatedAt)
	assert.Equal(t, []any{"req-1", "gemini", "timeout", int64(15000)}, db.lastArgs)
}

func TestLogAttempt_Error(t *testing.T) {
	store := NewPostgresStore(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	err := store.LogAttempt(context.Background(), &AttemptLog{})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPostgresStore(db).Migrate(context.Background()))
	assert.True(t, strings.Contains(db.lastSQL, "CREATE TABLE IF NOT EXISTS insight_attempts"))

	db.execErr = errors.New("permission denied")
	assert.Error(t, NewPostgresStore(db).Migrate(context.Background()))
}

func TestGetAttempts(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := &fakeRows{rows: [][]any{
		{"a2", "req-1", "openai", "success", int64(900), created.Add(time.Second)},
		{"a1", "req-1", "gemini", "timeout", int64(15000), created},
	}}
	db := &fakeDB{rows: rows}
	from, to := created.Add(-time.Hour), created.Add(time.Hour)

	logs, err := NewPostgresStore(db).GetAttempts(context.Background(), from, to)
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Equal(t, &AttemptLog{
		ID: "a2", RequestID: "req-1", Provider: "openai", Outcome: "success",
		LatencyMs: 900, CreatedAt: created.Add(time.Second),
	}, logs[0])
	assert.Equal(t, "timeout", logs[1].Outcome)
	assert.Equal(t, int64(15000), logs[1].LatencyMs)
	assert.Equal(t, []any{from, to}, db.lastArgs)
	assert.True(t, rows.closed)
}

func TestGetAttempts_QueryError(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("connection reset")}
	_, err := NewPostgresStore(db).GetAttempts(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}

func TestGetAttempts_IterationError(t *testing.T) {
	rows := &fakeRows{err: errors.New("conn closed mid-stream")}
	_, err := NewPostgresStore(&fakeDB{rows: rows}).GetAttempts(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.ErrorContains(t, err, "conn closed mid-stream")
}

func TestCountByOutcome(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		{"success", int64(7)},
		{"timeout", int64(2)},
		{"transport", int64(1)},
	}}

	counts, err := NewPostgresStore(&fakeDB{rows: rows}).CountByOutcome(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"success": 7, "timeout": 2, "transport": 1}, counts)
	assert.True(t, rows.closed)
}

func TestCountByOutcome_Empty(t *testing.T) {
	counts, err := NewPostgresStore(&fakeDB{rows: &fakeRows{}}).CountByOutcome(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCountByOutcome_Errors(t *testing.T) {
	_, err := NewPostgresStore(&fakeDB{queryErr: errors.New("timeout")}).CountByOutcome(context.Background(), time.Now(), time.Now())
	assert.Error(t, err)

	bad := &fakeRows{rows: [][]any{{"success"}}}
	_, err = NewPostgresStore(&fakeDB{rows: bad}).CountByOutcome(context.Background(), time.Now(), time.Now())
	assert.ErrorContains(t, err, "failed to scan attempt count")
}
