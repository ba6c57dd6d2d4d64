package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
}

func testClient(url string) *Client {
	c := NewClient(Config{Endpoint: url, MaxRetries: 1, Timeout: 5 * time.Second})
	c.balanceWait = time.Millisecond
	return c
}

func TestSOLBalance(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":1500000000}`,
	})
	defer srv.Close()

	owner := solana.NewWallet().PublicKey().String()
	bal, err := testClient(srv.URL).SOLBalance(context.Background(), owner)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bal, 1e-12)
}

func TestSignatures(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	srv := rpcServer(t, map[string]string{
		"getSignaturesForAddress": `[{"signature":"` + sig.String() + `","slot":10,"blockTime":1700000000,"err":null}]`,
	})
	defer srv.Close()

	pair := solana.NewWallet().PublicKey().String()
	infos, err := testClient(srv.URL).Signatures(context.Background(), pair, 10, "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, sig.String(), infos[0].Signature)
	assert.Equal(t, int64(1_700_000_000), infos[0].BlockTime.Unix())
	assert.False(t, infos[0].Failed)
}

func TestInvalidAddress(t *testing.T) {
	c := testClient("http://127.0.0.1:1")
	_, err := c.SOLBalance(context.Background(), "not-a-key")
	assert.Error(t, err)
	_, err = c.Signatures(context.Background(), "not-a-key", 1, "")
	assert.Error(t, err)
}
