package trader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrSwapRateLimited = errors.New("swap rpc rate limited")
	ErrInvalidEndpoint = errors.New("invalid rpc endpoint")
)

type SwapRequest struct {
	Buy      bool
	Amount   float64
	Mint     string
	Slippage float64
	// Price and SOLPrice are the quoted USD prices, used by simulated fills.
	Price    float64
	SOLPrice float64
}

type SwapResult struct {
	TxID string
	// PoolPrice is the price the pool reported, 0 when unknown.
	PoolPrice float64
}

// Swapper executes one swap. Balance changes are measured by the caller.
type Swapper interface {
	Swap(ctx context.Context, req SwapRequest) (SwapResult, error)
}

// ScriptSwapper shells out to the Raydium swap script:
// <command> <script> swap <amount> <1|0> <mint> <slippage>.
type ScriptSwapper struct {
	Command string
	Script  string
}

func NewScriptSwapper(command, script string) *ScriptSwapper {
	return &ScriptSwapper{Command: command, Script: script}
}

func (s *ScriptSwapper) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	side := "0"
	if req.Buy {
		side = "1"
	}
	args := []string{
		s.Script, "swap",
		strconv.FormatFloat(req.Amount, 'f', -1, 64),
		side,
		req.Mint,
		strconv.FormatFloat(req.Slippage, 'f', -1, 64),
	}
	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	log.Debug().Str("stdout", stdout.String()).Str("stderr", stderr.String()).Msg("Swap script output")

	errOut := stderr.String()
	switch {
	case strings.Contains(errOut, "429") || strings.Contains(errOut, "Too Many Requests"):
		return SwapResult{}, ErrSwapRateLimited
	case strings.Contains(errOut, "Endpoint URL must start with"):
		return SwapResult{}, ErrInvalidEndpoint
	case runErr != nil:
		return SwapResult{}, fmt.Errorf("swap script failed: %w: %s", runErr, strings.TrimSpace(errOut))
	}
	return ParseSwapOutput(stdout.String())
}

// ParseSwapOutput pulls the "Transaction ID:" and "Pool info: {json}" lines
// out of the script's stdout. Both are optional; a pool line that is not
// JSON leaves PoolPrice at 0.
func ParseSwapOutput(out string) (SwapResult, error) {
	var res SwapResult
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if _, after, ok := strings.Cut(line, "Transaction ID:"); ok && res.TxID == "" {
			res.TxID = strings.TrimSpace(after)
			continue
		}
		if _, after, ok := strings.Cut(line, "Pool info:"); ok {
			var pool struct {
				Price float64 `json:"price"`
			}
			if err := json.Unmarshal([]byte(strings.TrimSpace(after)), &pool); err != nil {
				log.Warn().Err(err).Str("line", line).Msg("⚠️ Could not decode pool info, using quoted price")
				continue
			}
			res.PoolPrice = pool.Price
		}
	}
	return res, sc.Err()
}
