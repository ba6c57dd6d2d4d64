package chain

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

// LoadWallet reads a keypair file. Both the solana-keygen byte array format
// (64 byte keypair or 32 byte seed) and a quoted base58 private key are
// accepted.
func LoadWallet(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))

	if strings.HasPrefix(text, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(text), &ints); err != nil {
			return nil, fmt.Errorf("failed to decode wallet byte array: %w", err)
		}
		raw := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet byte %d out of range", i)
			}
			raw[i] = byte(v)
		}
		switch len(raw) {
		case ed25519.PrivateKeySize:
			return solana.PrivateKey(raw), nil
		case ed25519.SeedSize:
			return solana.PrivateKey(ed25519.NewKeyFromSeed(raw)), nil
		default:
			return nil, fmt.Errorf("wallet byte array has %d bytes, want 32 or 64", len(raw))
		}
	}

	key, err := solana.PrivateKeyFromBase58(strings.Trim(text, "\""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 wallet: %w", err)
	}
	return key, nil
}

// GenerateWallet creates a new keypair at path. An existing file is never
// overwritten.
func GenerateWallet(path string) (solana.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("wallet %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key := solana.NewWallet().PrivateKey
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%q", key.String())), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write wallet: %w", err)
	}
	log.Info().Str("path", path).Str("pubkey", key.PublicKey().String()).Msg("🔐 wallet generated")
	return key, nil
}
