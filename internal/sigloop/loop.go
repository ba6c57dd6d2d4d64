// Package sigloop follows the target pair's signatures, stores the token
// trades they contain and runs the sea-life classifier every cycle.
package sigloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"archon/internal/chain"
	"archon/internal/metrics"
	"archon/internal/target"
	"archon/internal/whale"
)

// errFetch marks a failed transaction fetch, as opposed to a store failure.
var errFetch = errors.New("fetch transaction")

type Chain interface {
	Signatures(ctx context.Context, address string, limit int, until string) ([]chain.SignatureInfo, error)
	Transaction(ctx context.Context, signature string) (chain.Transaction, error)
}

type Store interface {
	whale.Store
	UpsertValidatorTrades(ctx context.Context, token string, trades []whale.Trade) error
}

type Loop struct {
	chain      Chain
	store      Store
	cfg        Config
	targetPath string
	stream     Stream
	now        func() time.Time

	token     target.Token
	cursor    string
	seen      *seenSet
	failures  map[string]int
	processor *whale.Processor

	sigs       chan string
	stopStream context.CancelFunc
}

func New(c Chain, store Store, cfg Config, targetPath string) *Loop {
	if cfg.Batch <= 0 {
		cfg.Batch = 10
	}
	if cfg.MaxFetchFailures <= 0 {
		cfg.MaxFetchFailures = 1
	}
	return &Loop{
		chain:      c,
		store:      store,
		cfg:        cfg,
		targetPath: targetPath,
		now:        time.Now,
		seen:       newSeenSet(cfg.SeenLimit),
		failures:   make(map[string]int),
	}
}

// UseStream switches signature discovery from polling to s.
func (l *Loop) UseStream(s Stream) {
	l.stream = s
	size := l.cfg.WSBuffer
	if size <= 0 {
		size = 256
	}
	l.sigs = make(chan string, size)
}

func (l *Loop) Run(ctx context.Context) error {
	log.Info().Dur("interval", l.cfg.Interval).Int("batch", l.cfg.Batch).Bool("websocket", l.stream != nil).Msg("signature loop started")
	defer l.stopWatching()

	for {
		start := l.now()
		if err := l.Cycle(ctx, start); err != nil {
			log.Error().Err(err).Msg("Main loop error")
		}
		wait := l.cfg.Interval - l.now().Sub(start)
		if wait < 0 {
			wait = 0
		}
		log.Debug().Dur("sleep", wait).Msg("cycle done")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Cycle reloads the target, ingests new signatures and classifies the
// trades stored in the processor window.
func (l *Loop) Cycle(ctx context.Context, start time.Time) error {
	defer metrics.ObserveCycle("sigloop", start)

	if err := l.reloadTarget(ctx); err != nil {
		return err
	}

	var ingestErr error
	if l.stream != nil {
		ingestErr = l.drainStream(ctx)
	} else {
		ingestErr = l.poll(ctx)
	}
	if ingestErr != nil {
		log.Error().Err(ingestErr).Str("ticker", l.token.Ticker).Msg("signature ingest failed")
	}

	if _, err := l.processor.Cycle(ctx, l.token.Ticker, start); err != nil {
		return err
	}
	return nil
}

func (l *Loop) reloadTarget(ctx context.Context) error {
	tok, err := target.Load(l.targetPath)
	if err != nil {
		return err
	}
	if tok == l.token && l.processor != nil {
		return nil
	}
	if l.token.Ticker != "" {
		log.Info().
			Str("old", l.token.PairAddress+"/"+l.token.MintAddress+"/"+l.token.Ticker).
			Str("new", tok.PairAddress+"/"+tok.MintAddress+"/"+tok.Ticker).
			Msg("Target switch detected!")
	}
	l.token = tok
	l.cursor = ""
	l.seen.Reset()
	clear(l.failures)
	l.processor = whale.NewProcessor(l.store, whale.ProcessorConfig{
		Interval:   l.cfg.Interval,
		Window:     l.cfg.Window,
		CountsFile: l.cfg.CountsFile(tok.Ticker),
	})
	if l.stream != nil {
		l.startWatching(ctx, tok.PairAddress)
	}
	return nil
}

// poll fetches signatures newer than the cursor and processes them oldest
// first. The cursor only moves past signatures that were handled.
func (l *Loop) poll(ctx context.Context) error {
	sigs, err := l.chain.Signatures(ctx, l.token.PairAddress, l.cfg.Batch, l.cursor)
	if err != nil {
		return err
	}
	if len(sigs) == 0 {
		log.Debug().Msg("No new signatures fetched")
		return nil
	}
	for i := len(sigs) - 1; i >= 0; i-- {
		s := sigs[i]
		if l.seen.Has(s.Signature) {
			log.Debug().Str("signature", s.Signature).Msg("Transaction already processed")
			l.cursor = s.Signature
			continue
		}
		if _, err := l.Process(ctx, s.Signature); err != nil && !l.giveUp(ctx, s.Signature, err) {
			return err
		}
		l.cursor = s.Signature
	}
	return nil
}

// giveUp counts a failed fetch of sig and reports whether the signature is
// now skipped. Store errors, rate limiting and cancellation never skip.
func (l *Loop) giveUp(ctx context.Context, sig string, err error) bool {
	if !errors.Is(err, errFetch) || errors.Is(err, chain.ErrRateLimited) || ctx.Err() != nil {
		return false
	}
	if len(l.failures) >= l.cfg.SeenLimit && l.cfg.SeenLimit > 0 {
		clear(l.failures)
	}
	l.failures[sig]++
	n := l.failures[sig]
	if n < l.cfg.MaxFetchFailures {
		log.Warn().Err(err).Str("signature", sig).Int("attempt", n).Msg("transaction fetch failed, retrying next cycle")
		return false
	}
	delete(l.failures, sig)
	l.seen.Add(sig)
	log.Error().Err(err).Str("signature", sig).Int("attempts", n).Msg("Gave up on signature")
	return true
}

func (l *Loop) drainStream(ctx context.Context) error {
	for {
		select {
		case sig := <-l.sigs:
			if l.seen.Has(sig) {
				continue
			}
			if _, err := l.Process(ctx, sig); err != nil && !l.giveUp(ctx, sig, err) {
				select {
				case l.sigs <- sig:
				default:
				}
				return err
			}
		default:
			return nil
		}
	}
}

// Process fetches one transaction, extracts its trades for the target mint
// and stores them. It returns the number of stored trades.
func (l *Loop) Process(ctx context.Context, signature string) (int, error) {
	tx, err := l.chain.Transaction(ctx, signature)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %w", errFetch, signature, err)
	}
	if !whale.HasTradeActivity(tx, l.token.MintAddress) {
		log.Debug().Str("signature", signature).Msg("no trade activity")
		delete(l.failures, signature)
		l.seen.Add(signature)
		return 0, nil
	}

	trades := whale.ExtractTrades(tx, l.token.MintAddress, l.cfg.MinTradeAmount)
	if err := l.store.UpsertValidatorTrades(ctx, l.token.Ticker, trades); err != nil {
		return 0, err
	}
	for _, t := range trades {
		log.Info().
			Str("signature", signature).
			Str("wallet", t.Wallet).
			Float64("amount", t.Amount).
			Time("ts", t.BlockTime).
			Msgf("%s %s", t.Emoji(), t.Side)
	}
	delete(l.failures, signature)
	l.seen.Add(signature)
	return len(trades), nil
}

func (l *Loop) startWatching(ctx context.Context, address string) {
	l.stopWatching()
	for len(l.sigs) > 0 {
		<-l.sigs
	}
	wctx, cancel := context.WithCancel(ctx)
	l.stopStream = cancel
	go l.stream.Watch(wctx, address, l.sigs)
}

func (l *Loop) stopWatching() {
	if l.stopStream != nil {
		l.stopStream()
		l.stopStream = nil
	}
}
