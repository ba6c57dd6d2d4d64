package candle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// DojiEntry is one detected doji kept in the journal file.
type DojiEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Pair      string    `json:"token_pair"`
	Type      string    `json:"doji_type"`
	Close     float64   `json:"close"`
}

// DojiJournal keeps recent dojis in a JSON file, pruning anything older than
// Retention.
type DojiJournal struct {
	Path      string
	Retention time.Duration
}

func (j DojiJournal) Load() ([]DojiEntry, error) {
	data, err := os.ReadFile(j.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read doji journal: %w", err)
	}
	var entries []DojiEntry
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode doji journal: %w", err)
	}
	return entries, nil
}

// Record appends c when it is a doji not yet journaled, and prunes old
// entries relative to now.
func (j DojiJournal) Record(c Candle, now time.Time) error {
	if !c.IsDoji() {
		return nil
	}
	entries, err := j.Load()
	if err != nil {
		return err
	}
	cutoff := now.Add(-j.Retention)
	kept := entries[:0]
	for _, e := range entries {
		if j.Retention > 0 && e.Timestamp.Before(cutoff) {
			continue
		}
		if e.Pair == c.Pair && e.Timestamp.Equal(c.Timestamp) {
			return nil
		}
		kept = append(kept, e)
	}
	kept = append(kept, DojiEntry{Timestamp: c.Timestamp, Pair: c.Pair, Type: c.Doji, Close: c.Close})

	data, err := json.MarshalIndent(kept, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.Path, data, 0o644)
}
