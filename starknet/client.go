package starknet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
	"github.com/pkg/errors"
)

// Provider is the subset of the StarkNet JSON-RPC surface the gateway
// consumes. Implementations must be safe for concurrent use.
type Provider interface {
	Call(ctx context.Context, call FunctionCall, id BlockID) ([]*felt.Felt, error)
	StorageAt(ctx context.Context, contract, key *felt.Felt, id BlockID) (*felt.Felt, error)
	Nonce(ctx context.Context, contract *felt.Felt, id BlockID) (*felt.Felt, error)
	BlockWithTxs(ctx context.Context, id BlockID) (*Block, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*felt.Felt, error)
	Events(ctx context.Context, filter EventFilter) (*EventsChunk, error)
	TransactionByHash(ctx context.Context, hash *felt.Felt) (*Transaction, error)
	TransactionReceiptByHash(ctx context.Context, hash *felt.Felt) (*TransactionReceipt, error)
	AddInvokeTransaction(ctx context.Context, invoke *BroadcastedInvoke) (*AddInvokeResponse, error)
	Syncing(ctx context.Context) (*SyncStatus, error)
}

// Error is a StarkNet JSON-RPC error response. These are terminal: the
// upstream node evaluated the request and rejected it, so retrying is
// pointless.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// Upstream error codes the gateway inspects.
const (
	CodeContractNotFound = 20
	CodeBlockNotFound    = 24
	CodeTxnHashNotFound  = 29
	CodeContractError    = 40
)

// IsContractNotFound reports whether err is the upstream "Contract not
// found" rejection, which the account resolver maps to Ethereum's
// empty-account defaults.
func IsContractNotFound(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeContractNotFound
}

func IsBlockNotFound(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeBlockNotFound
}

func IsTxnHashNotFound(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeTxnHashNotFound
}

// ErrUnavailable wraps transport failures that persisted through the retry
// budget.
var ErrUnavailable = errors.New("starknet provider unavailable")

type Backoff func(wait time.Duration) time.Duration

func ExponentialBackoff(wait time.Duration) time.Duration {
	return wait * 2
}

func NopBackoff(wait time.Duration) time.Duration {
	return 0
}

// EventListener is notified on each upstream round-trip; wire it to metrics.
type EventListener interface {
	OnResponse(method string, status int, took time.Duration)
	OnRetry(method string, attempt int)
}

type SelectiveListener struct {
	OnResponseCb func(method string, status int, took time.Duration)
	OnRetryCb    func(method string, attempt int)
}

func (l *SelectiveListener) OnResponse(method string, status int, took time.Duration) {
	if l.OnResponseCb != nil {
		l.OnResponseCb(method, status, took)
	}
}

func (l *SelectiveListener) OnRetry(method string, attempt int) {
	if l.OnRetryCb != nil {
		l.OnRetryCb(method, attempt)
	}
}

var _ Provider = (*Client)(nil)

// Client talks to a StarkNet node over JSON-RPC with bounded retries.
// Retry state is local to each call; the Client itself holds no mutable
// state and is safe for concurrent use.
type Client struct {
	url        string
	client     *http.Client
	backoff    Backoff
	maxRetries int
	maxWait    time.Duration
	minWait    time.Duration
	log        utils.SimpleLogger
	listener   EventListener
}

func NewClient(rpcURL string) *Client {
	return &Client{
		url:        rpcURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		backoff:    ExponentialBackoff,
		maxRetries: 3,
		maxWait:    4 * time.Second,
		minWait:    100 * time.Millisecond,
		log:        utils.NewNopZapLogger(),
		listener:   &SelectiveListener{},
	}
}

func (c *Client) WithBackoff(b Backoff) *Client {
	c.backoff = b
	return c
}

func (c *Client) WithMaxRetries(num int) *Client {
	c.maxRetries = num
	return c
}

func (c *Client) WithMaxWait(d time.Duration) *Client {
	c.maxWait = d
	return c
}

func (c *Client) WithMinWait(d time.Duration) *Client {
	c.minWait = d
	return c
}

func (c *Client) WithLogger(log utils.SimpleLogger) *Client {
	c.log = log
	return c
}

func (c *Client) WithListener(l EventListener) *Client {
	c.listener = l
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.client = client
	return c
}

type rpcRequest struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// do posts a single JSON-RPC request, retrying transient transport errors
// with exponential backoff. A JSON-RPC level error from the node is returned
// as *Error without retry.
func (c *Client) do(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{Version: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return err
	}

	var lastErr error
	wait := time.Duration(0)
	for attempt := 0; attempt < c.maxRetries+1; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			if attempt > 0 {
				c.listener.OnRetry(method, attempt)
			}
			var done bool
			done, lastErr = c.doOnce(ctx, method, body, result)
			if done {
				return lastErr
			}

			if wait < c.minWait {
				wait = c.minWait
			} else {
				wait = min(c.backoff(wait), c.maxWait)
			}
			c.log.Debugw("Failed query to starknet node, retrying...",
				"method", method, "retryAfter", wait.String(), "err", lastErr)
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrUnavailable, method, c.maxRetries+1, lastErr)
}

// doOnce reports done=true when the outcome is terminal: success, a JSON-RPC
// error from the node, or an undecodable body.
func (c *Client) doOnce(ctx context.Context, method string, body []byte, result any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return true, err
	}
	req.Header.Set("Content-Type", "application/json")

	reqTimer := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	c.listener.OnResponse(method, res.StatusCode, time.Since(reqTimer))

	if res.StatusCode != http.StatusOK {
		// 4xx (other than 429) means the request itself is broken; do not retry.
		retry := res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests
		return !retry, errors.Errorf("starknet node returned %s", res.Status)
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return false, err
	}

	var rpcRes rpcResponse
	if err := json.Unmarshal(respBody, &rpcRes); err != nil {
		return true, errors.Wrap(err, "decode starknet response")
	}
	if rpcRes.Error != nil {
		return true, rpcRes.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcRes.Result, result); err != nil {
			return true, errors.Wrapf(err, "decode %s result", method)
		}
	}
	return true, nil
}

func (c *Client) Call(ctx context.Context, call FunctionCall, id BlockID) ([]*felt.Felt, error) {
	var result []*felt.Felt
	params := struct {
		Request FunctionCall `json:"request"`
		BlockID BlockID      `json:"block_id"`
	}{call, id}
	if err := c.do(ctx, "starknet_call", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) StorageAt(ctx context.Context, contract, key *felt.Felt, id BlockID) (*felt.Felt, error) {
	result := new(felt.Felt)
	params := struct {
		ContractAddress *felt.Felt `json:"contract_address"`
		Key             *felt.Felt `json:"key"`
		BlockID         BlockID    `json:"block_id"`
	}{contract, key, id}
	if err := c.do(ctx, "starknet_getStorageAt", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Nonce(ctx context.Context, contract *felt.Felt, id BlockID) (*felt.Felt, error) {
	result := new(felt.Felt)
	params := struct {
		BlockID         BlockID    `json:"block_id"`
		ContractAddress *felt.Felt `json:"contract_address"`
	}{id, contract}
	if err := c.do(ctx, "starknet_getNonce", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) BlockWithTxs(ctx context.Context, id BlockID) (*Block, error) {
	result := new(Block)
	params := struct {
		BlockID BlockID `json:"block_id"`
	}{id}
	if err := c.do(ctx, "starknet_getBlockWithTxs", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.do(ctx, "starknet_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

func (c *Client) ChainID(ctx context.Context) (*felt.Felt, error) {
	result := new(felt.Felt)
	if err := c.do(ctx, "starknet_chainId", nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Events(ctx context.Context, filter EventFilter) (*EventsChunk, error) {
	result := new(EventsChunk)
	params := struct {
		Filter EventFilter `json:"filter"`
	}{filter}
	if err := c.do(ctx, "starknet_getEvents", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) TransactionByHash(ctx context.Context, hash *felt.Felt) (*Transaction, error) {
	result := new(Transaction)
	params := struct {
		TransactionHash *felt.Felt `json:"transaction_hash"`
	}{hash}
	if err := c.do(ctx, "starknet_getTransactionByHash", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) TransactionReceiptByHash(ctx context.Context, hash *felt.Felt) (*TransactionReceipt, error) {
	result := new(TransactionReceipt)
	params := struct {
		TransactionHash *felt.Felt `json:"transaction_hash"`
	}{hash}
	if err := c.do(ctx, "starknet_getTransactionReceipt", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) AddInvokeTransaction(ctx context.Context, invoke *BroadcastedInvoke) (*AddInvokeResponse, error) {
	result := new(AddInvokeResponse)
	params := struct {
		InvokeTransaction *BroadcastedInvoke `json:"invoke_transaction"`
	}{invoke}
	if err := c.do(ctx, "starknet_addInvokeTransaction", params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Syncing returns nil when the node reports it is not syncing: the wire
// value is either the boolean false or a status object.
func (c *Client) Syncing(ctx context.Context) (*SyncStatus, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "starknet_syncing", nil, &raw); err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("false")) {
		return nil, nil
	}
	status := new(SyncStatus)
	if err := json.Unmarshal(raw, status); err != nil {
		return nil, errors.Wrap(err, "decode sync status")
	}
	return status, nil
}
