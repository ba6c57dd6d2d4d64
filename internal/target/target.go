// Package target reads and writes the token every loop is pointed at.
package target

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Token identifies the traded SPL token and its liquidity pool.
type Token struct {
	Ticker      string `json:"ticker"`
	MintAddress string `json:"mint_address"`
	PairAddress string `json:"pair_address"`
}

type file struct {
	TargetToken Token `json:"target_token"`
}

var Default = Token{
	Ticker:      "BABY",
	MintAddress: "6pKHwNCpzgZuC9o5FzvCZkYSUGfQddhUYtMyDbEVpump",
	PairAddress: "6Fraqd6BFsYvXBa29W8TWbGiKGvCwqvLBfcsBKyitYUH",
}

// USDPair is the candle series name for the token.
func (t Token) USDPair() string {
	return t.Ticker + "/USD"
}

func (t Token) Validate() error {
	switch {
	case t.Ticker == "":
		return errors.New("target ticker is empty")
	case t.MintAddress == "":
		return errors.New("target mint address is empty")
	case t.PairAddress == "":
		return errors.New("target pair address is empty")
	}
	return nil
}

// Load reads the target file. A missing file is created holding Default.
// The ticker is always upper-cased.
func Load(path string) (Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := Save(path, Default); err != nil {
			return Token{}, err
		}
		return Default, nil
	}
	if err != nil {
		return Token{}, fmt.Errorf("failed to read target file %s: %w", path, err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return Token{}, fmt.Errorf("failed to decode target file %s: %w", path, err)
	}
	t := f.TargetToken
	t.Ticker = strings.ToUpper(strings.TrimSpace(t.Ticker))
	if err := t.Validate(); err != nil {
		return Token{}, fmt.Errorf("invalid target file %s: %w", path, err)
	}
	return t, nil
}

// Save writes the target atomically.
func Save(path string, t Token) error {
	data, err := json.MarshalIndent(file{TargetToken: t}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode target: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create target dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write target file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace target file: %w", err)
	}
	return nil
}
