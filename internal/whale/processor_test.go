package whale

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows      []ValidatorRow
	from, to  time.Time
	token     string
	stored    []Detection
	loadErr   error
	upsertErr error
}

func (f *fakeStore) ValidatorTradesBetween(_ context.Context, token string, from, to time.Time) ([]ValidatorRow, error) {
	f.token, f.from, f.to = token, from, to
	return f.rows, f.loadErr
}

func (f *fakeStore) UpsertDetections(_ context.Context, d []Detection) error {
	f.stored = append(f.stored, d...)
	return f.upsertErr
}

func TestProcessorCycle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{rows: []ValidatorRow{
		{Signature: "a", Wallet: "w1", BlockTime: now, PostBalance: 2_000_000, Side: Buy},
		{Signature: "a", Wallet: "w1", BlockTime: now, PostBalance: 2_000_000, Side: Buy},
		{Signature: "b", Wallet: "w2", BlockTime: now, PreBalance: 700, PostBalance: 100, Side: Sell},
		{Signature: "c", Wallet: "w3", BlockTime: now, PostBalance: 0.001, Side: Sell},
		{Signature: "d", Wallet: "w4", BlockTime: now, PostBalance: 50, Side: Hold},
	}}
	countsFile := filepath.Join(t.TempDir(), "sea_life.json")
	p := NewProcessor(store, ProcessorConfig{CountsFile: countsFile})

	report, err := p.Cycle(context.Background(), "BABY", now)
	require.NoError(t, err)

	assert.Equal(t, "BABY", store.token)
	assert.Equal(t, now.Add(-120*time.Second), store.from)
	assert.Equal(t, now.Add(5*time.Second), store.to)

	assert.Equal(t, 1, report.Totals[Buy])
	assert.Equal(t, 2, report.Totals[Sell])
	assert.Equal(t, 1, report.Counts[Buy]["🐳"])
	assert.Equal(t, 1, report.Counts[Sell]["🐡"])
	assert.Equal(t, 0, report.Counts[Sell][NoWhale])

	require.Len(t, store.stored, 3)
	assert.Equal(t, 2_000_000*float64(DetectionAmountScale), store.stored[0].Amount)
	assert.Equal(t, NoWhale, store.stored[2].Classification)

	data, err := os.ReadFile(countsFile)
	require.NoError(t, err)
	var counts map[string]map[string]int
	require.NoError(t, json.Unmarshal(data, &counts))
	assert.Equal(t, 1, counts["buy"]["🐳"])
}

func TestProcessorCycleLoadError(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("db down")}
	p := NewProcessor(store, ProcessorConfig{})

	_, err := p.Cycle(context.Background(), "BABY", time.Now())
	assert.ErrorContains(t, err, "db down")
}
