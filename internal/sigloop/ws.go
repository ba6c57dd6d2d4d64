package sigloop

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog/log"
)

// Stream pushes signatures that mention an address into out until ctx is
// done.
type Stream interface {
	Watch(ctx context.Context, address string, out chan<- string)
}

// LogsStream subscribes to logsSubscribe notifications mentioning the pair
// and reconnects after a delay whenever the subscription drops.
type LogsStream struct {
	endpoint  string
	reconnect time.Duration
}

func NewLogsStream(endpoint string, reconnect time.Duration) *LogsStream {
	return &LogsStream{endpoint: endpoint, reconnect: reconnect}
}

func (s *LogsStream) Watch(ctx context.Context, address string, out chan<- string) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("cannot subscribe to invalid address")
		return
	}
	for {
		if err := s.stream(ctx, pk, out); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Dur("retry_in", s.reconnect).Msg("logs subscription dropped")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnect):
		}
	}
}

func (s *LogsStream) stream(ctx context.Context, pk solana.PublicKey, out chan<- string) error {
	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	defer client.Close()

	sub, err := client.LogsSubscribeMentions(pk, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("logs subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	log.Info().Str("address", pk.String()).Msg("subscribed to pair logs")

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if msg == nil || msg.Value.Err != nil {
			continue
		}
		select {
		case out <- msg.Value.Signature.String():
		case <-ctx.Done():
			return nil
		default:
			log.Warn().Str("signature", msg.Value.Signature.String()).Msg("signature buffer full, dropping")
		}
	}
}
