package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Source is how the trading loop reads signals.
type Source interface {
	Fetch(ctx context.Context, ticker string) (Snapshot, error)
}

// HTTPSource polls GET /data.
type HTTPSource struct {
	url  string
	http *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{url: url, http: &http.Client{Timeout: timeout}}
}

// Fetch returns ErrNoData when the server answers with a placeholder or for
// another token.
func (s *HTTPSource) Fetch(ctx context.Context, ticker string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Snapshot{}, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("signals request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("signals status %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode signals: %w", err)
	}
	if snap.Message != "" || snap.Token != ticker {
		return snap, ErrNoData
	}
	return snap, nil
}
