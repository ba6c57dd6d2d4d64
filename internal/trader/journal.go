package trader

import (
	"encoding/json"
	"fmt"
	"os"
)

// Journal appends one JSON object per line. An empty path disables it.
type Journal struct {
	Path string
}

func (j Journal) Append(v any) error {
	if j.Path == "" {
		return nil
	}
	f, err := os.OpenFile(j.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", j.Path, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON to %s: %w", j.Path, err)
	}
	return nil
}
