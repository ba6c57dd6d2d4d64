package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "target_constants.json")

	tok, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default, tok)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadUppercasesTicker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target_constants.json")
	body := `{"target_token":{"ticker":"bonk","mint_address":"MintX","pair_address":"PairX"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tok, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BONK", tok.Ticker)
	assert.Equal(t, "BONK/USD", tok.USDPair())
	assert.Equal(t, "PairX", tok.PairAddress)
}

func TestLoadRejectsIncompleteTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target_constants.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"target_token":{"ticker":"X"}}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target_constants.json")
	want := Token{Ticker: "WIF", MintAddress: "m", PairAddress: "p"}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
