package starknet_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *starknet.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return starknet.NewClient(srv.URL).WithBackoff(starknet.NopBackoff).WithMinWait(0)
}

func respond(t *testing.T, w http.ResponseWriter, result string) {
	t.Helper()
	_, err := w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	require.NoError(t, err)
}

func TestBlockNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		require.Equal(t, "starknet_blockNumber", call.Method)
		respond(t, w, "18361")
	})

	num, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(18361), num)
}

func TestCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		require.Equal(t, "starknet_call", call.Method)
		respond(t, w, `["0x1","0xff"]`)
	})

	ret, err := client.Call(context.Background(), starknet.FunctionCall{
		ContractAddress:    new(felt.Felt).SetUint64(1),
		EntryPointSelector: new(felt.Felt).SetUint64(2),
	}, starknet.LatestBlockID())
	require.NoError(t, err)
	require.Len(t, ret, 2)
	assert.Equal(t, uint64(0xff), ret[1].Uint64())
}

func TestRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		respond(t, w, "7")
	})

	num, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), num)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryBudgetExhausted(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}).WithMaxRetries(2)

	_, err := client.BlockNumber(context.Background())
	require.ErrorIs(t, err, starknet.ErrUnavailable)
	assert.Equal(t, int32(3), hits.Load()) // initial attempt + 2 retries
}

func TestRPCErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, err := w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":20,"message":"Contract not found"}}`))
		require.NoError(t, err)
	})

	_, err := client.Nonce(context.Background(), new(felt.Felt).SetUint64(1), starknet.LatestBlockID())
	require.Error(t, err)
	assert.True(t, starknet.IsContractNotFound(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.BlockNumber(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSyncing(t *testing.T) {
	t.Run("not syncing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, "false")
		})
		status, err := client.Syncing(context.Background())
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("syncing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, `{"starting_block_num":1,"current_block_num":5,"highest_block_num":10}`)
		})
		status, err := client.Syncing(context.Background())
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, uint64(5), status.CurrentBlockNum)
	})
}

func TestBlockIDMarshal(t *testing.T) {
	tests := []struct {
		id   starknet.BlockID
		want string
	}{
		{starknet.LatestBlockID(), `"latest"`},
		{starknet.PendingBlockID(), `"pending"`},
		{starknet.BlockIDFromNumber(44), `{"block_number":44}`},
		{starknet.BlockIDFromHash(new(felt.Felt).SetUint64(0xabc)), `{"block_hash":"0xabc"}`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.id)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(got))
	}
}

func TestListenerObservesRetries(t *testing.T) {
	var responses, retries atomic.Int32
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		respond(t, w, "1")
	}).WithListener(&starknet.SelectiveListener{
		OnResponseCb: func(method string, status int, took time.Duration) { responses.Add(1) },
		OnRetryCb:    func(method string, attempt int) { retries.Add(1) },
	})

	_, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), responses.Load())
	assert.Equal(t, int32(1), retries.Load())
}
