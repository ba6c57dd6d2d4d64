package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	got []PairSnapshot
	err error
}

func (f *fakeSink) Insert(_ context.Context, s []PairSnapshot) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = append(f.got, s...)
	return int64(len(s)), nil
}

func TestSnapshotFromPair(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := scanPair("P", "SOL", 1500, 250, 3.5)
	p.PriceNative = "0.00042"
	p.PriceUsd = "0.063"
	p.Txns.M5 = BuysSells{Buys: 7, Sells: 2}
	p.PairCreatedAt = 1700000000000

	s, err := SnapshotFromPair(p, at)
	require.NoError(t, err)
	assert.Equal(t, at, s.Timestamp)
	assert.Equal(t, 0.00042, s.PriceNative)
	assert.Equal(t, 0.063, s.PriceUSD)
	assert.Equal(t, 7, s.TxnsM5Buys)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), s.PairCreatedAt)

	_, err = SnapshotFromPair(Pair{PairAddress: "x"}, at)
	assert.Error(t, err)

	bad := scanPair("neg", "SOL", -1, 0, 0)
	_, err = SnapshotFromPair(bad, at)
	assert.Error(t, err)
}

func TestCollectorCycle(t *testing.T) {
	src := &fakeSearcher{pairs: []Pair{
		scanPair("a", "SOL", 1, 1, 1),
		{ChainID: SolanaChainID, PairAddress: "missing-tokens"},
		scanPair("b", "USDC", 1, 1, 1),
	}}
	sink := &fakeSink{}
	c := NewCollector(src, sink, DefaultConfig().Collector)

	n, err := c.Cycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, sink.got, 2)
	assert.Equal(t, "a", sink.got[0].PairAddress)
	assert.Equal(t, DefaultConfig().Collector.Query, src.query)
}

func TestCollectorCycleErrors(t *testing.T) {
	c := NewCollector(&fakeSearcher{err: ErrRateLimited}, &fakeSink{}, DefaultConfig().Collector)
	_, err := c.Cycle(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrRateLimited)

	boom := errors.New("copy failed")
	c = NewCollector(&fakeSearcher{pairs: []Pair{scanPair("a", "SOL", 1, 1, 1)}}, &fakeSink{err: boom}, DefaultConfig().Collector)
	_, err = c.Cycle(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)

	c = NewCollector(&fakeSearcher{}, &fakeSink{}, DefaultConfig().Collector)
	n, err := c.Cycle(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
