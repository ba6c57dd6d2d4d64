package trader

import (
	"context"

	"archon/internal/chain"
)

// Wallet reports the balances the tracker is reconciled against.
type Wallet interface {
	SOL(ctx context.Context) (float64, error)
	Tokens(ctx context.Context) (float64, error)
}

// ChainWallet reads balances of owner from Solana RPC.
type ChainWallet struct {
	client *chain.Client
	owner  string
	mint   string
}

func NewChainWallet(client *chain.Client, owner, mint string) *ChainWallet {
	return &ChainWallet{client: client, owner: owner, mint: mint}
}

func (w *ChainWallet) SOL(ctx context.Context) (float64, error) {
	return w.client.SOLBalance(ctx, w.owner)
}

func (w *ChainWallet) Tokens(ctx context.Context) (float64, error) {
	return w.client.TokenBalance(ctx, w.owner, w.mint)
}
