// Package chain talks to Solana JSON-RPC and converts results into the
// plain types the rest of the bot works with.
package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Endpoint          string        `yaml:"endpoint"`
	WSEndpoint        string        `yaml:"ws_endpoint"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint:          rpc.MainNetBeta_RPC,
		WSEndpoint:        rpc.MainNetBeta_WS,
		RequestsPerSecond: 8,
		Burst:             4,
		MaxRetries:        5,
		Timeout:           20 * time.Second,
	}
}

var ErrTransactionNotFound = errors.New("transaction not found")

// Client wraps a rate limited solana-go RPC client.
type Client struct {
	rpc *rpc.Client
	cfg Config

	balanceAttempts int
	balanceWait     time.Duration
}

func NewClient(cfg Config) *Client {
	return newClient(cfg, http.DefaultTransport)
}

func newClient(cfg Config, base http.RoundTripper) *Client {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: newRetryTransport(base, cfg),
	}
	rpcClient := jsonrpc.NewClientWithOpts(cfg.Endpoint, &jsonrpc.RPCClientOpts{HTTPClient: httpClient})
	return &Client{
		rpc:             rpc.NewWithCustomRPCClient(rpcClient),
		cfg:             cfg,
		balanceAttempts: 3,
		balanceWait:     time.Second,
	}
}

// Signatures returns up to limit signatures for address newer than until
// (newest first). An empty until means no lower bound.
func (c *Client) Signatures(ctx context.Context, address string, limit int, until string) ([]SignatureInfo, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}
	if until != "" {
		sig, err := solana.SignatureFromBase58(until)
		if err != nil {
			return nil, fmt.Errorf("invalid until signature %q: %w", until, err)
		}
		opts.Until = sig
	}

	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, pk, opts)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress failed: %w", err)
	}

	infos := make([]SignatureInfo, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		info := SignatureInfo{Signature: s.Signature.String(), Failed: s.Err != nil}
		if s.BlockTime != nil {
			info.BlockTime = s.BlockTime.Time()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Transaction fetches a confirmed transaction. A missing block time is
// replaced by the current time.
func (c *Client) Transaction(ctx context.Context, signature string) (Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("getTransaction %s failed: %w", signature, err)
	}
	if res == nil {
		return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, signature)
	}
	return convertTransaction(signature, res), nil
}

func convertTransaction(signature string, res *rpc.GetTransactionResult) Transaction {
	tx := Transaction{Signature: signature, BlockTime: time.Now().UTC()}
	if res.BlockTime != nil {
		tx.BlockTime = res.BlockTime.Time().UTC()
	}
	if res.Meta != nil {
		tx.Failed = res.Meta.Err != nil
		tx.LogMessages = res.Meta.LogMessages
		tx.PreTokenBalances = convertBalances(res.Meta.PreTokenBalances)
		tx.PostTokenBalances = convertBalances(res.Meta.PostTokenBalances)
	}
	if res.Transaction != nil {
		if decoded, err := res.Transaction.GetTransaction(); err == nil && decoded != nil {
			for _, k := range decoded.Message.AccountKeys {
				tx.AccountKeys = append(tx.AccountKeys, k.String())
			}
		} else if err != nil {
			log.Debug().Err(err).Str("signature", signature).Msg("could not decode transaction body")
		}
	}
	return tx
}

func convertBalances(in []rpc.TokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		tb := TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			tb.UIAmount = uiAmount(b.UiTokenAmount)
		}
		out = append(out, tb)
	}
	return out
}

func uiAmount(a *rpc.UiTokenAmount) float64 {
	if a.UiAmount != nil {
		return *a.UiAmount
	}
	f, err := strconv.ParseFloat(a.UiAmountString, 64)
	if err != nil {
		return 0
	}
	return f
}

// SOLBalance returns the owner's balance in SOL.
func (c *Client) SOLBalance(ctx context.Context, owner string) (float64, error) {
	pk, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	var lamports uint64
	err = c.retry(ctx, "getBalance", func() error {
		out, err := c.rpc.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		lamports = out.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL), nil
}

// TokenBalance sums the owner's token accounts for mint. No account means 0.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (float64, error) {
	ownerPK, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	mintPK, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	var total float64
	err = c.retry(ctx, "getTokenAccountsByOwner", func() error {
		accounts, err := c.rpc.GetTokenAccountsByOwner(ctx, ownerPK,
			&rpc.GetTokenAccountsConfig{Mint: &mintPK},
			&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64},
		)
		if err != nil {
			return err
		}
		sum := 0.0
		for _, acct := range accounts.Value {
			bal, err := c.rpc.GetTokenAccountBalance(ctx, acct.Pubkey, rpc.CommitmentConfirmed)
			if err != nil {
				return err
			}
			if bal != nil && bal.Value != nil {
				sum += uiAmount(bal.Value)
			}
		}
		total = sum
		return nil
	})
	return total, err
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.balanceAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("⚠️ balance read failed")
		if attempt == c.balanceAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.balanceWait):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, c.balanceAttempts, err)
}
