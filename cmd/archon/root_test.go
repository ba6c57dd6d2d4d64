package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archon/internal/chain"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"sigloop", "price", "api", "trade", "collect", "scan", "wallet", "migrate"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "log-level", "pretty", "metrics-addr"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func writeConfig(t *testing.T, walletPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archon.yaml")
	body := fmt.Sprintf("log:\n  level: error\ntrader:\n  wallet_path: %s\n", walletPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestWalletGenerate(t *testing.T) {
	chdir(t, t.TempDir())
	walletPath := filepath.Join(t.TempDir(), "wallet.json")

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"--config", writeConfig(t, walletPath), "wallet", "generate"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	key, err := chain.LoadWallet(walletPath)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), strings.TrimSpace(out.String()))

	// A second generate refuses to overwrite.
	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t, walletPath), "wallet", "generate"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestScanRejectsUnknownRanking(t *testing.T) {
	chdir(t, t.TempDir())
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t, "wallet.json"), "scan", "--once", "--rank-by", "volume"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volume")
}
