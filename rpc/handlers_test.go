package rpc

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChainID = big.NewInt(1263227476)

type fakeProvider struct {
	starknet.Provider

	calls       []starknet.FunctionCall
	callResults map[string][]*felt.Felt
	block       *starknet.Block
	receipts    map[string]*starknet.TransactionReceipt
	txs         map[string]*starknet.Transaction
	events      *starknet.EventsChunk
	head        uint64
	sync        *starknet.SyncStatus
	invokeErr   error
}

func (f *fakeProvider) Call(ctx context.Context, call starknet.FunctionCall, id starknet.BlockID) ([]*felt.Felt, error) {
	f.calls = append(f.calls, call)
	if res, found := f.callResults[call.EntryPointSelector.String()]; found {
		return res, nil
	}
	return nil, &starknet.Error{Code: starknet.CodeContractNotFound, Message: "Contract not found"}
}

func (f *fakeProvider) BlockWithTxs(ctx context.Context, id starknet.BlockID) (*starknet.Block, error) {
	if f.block == nil {
		return nil, &starknet.Error{Code: starknet.CodeBlockNotFound, Message: "Block not found"}
	}
	return f.block, nil
}

func (f *fakeProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeProvider) TransactionByHash(ctx context.Context, hash *felt.Felt) (*starknet.Transaction, error) {
	if tx, found := f.txs[hash.String()]; found {
		return tx, nil
	}
	return nil, &starknet.Error{Code: starknet.CodeTxnHashNotFound, Message: "Transaction hash not found"}
}

func (f *fakeProvider) TransactionReceiptByHash(ctx context.Context, hash *felt.Felt) (*starknet.TransactionReceipt, error) {
	if receipt, found := f.receipts[hash.String()]; found {
		return receipt, nil
	}
	return nil, &starknet.Error{Code: starknet.CodeTxnHashNotFound, Message: "Transaction hash not found"}
}

func (f *fakeProvider) Events(ctx context.Context, filter starknet.EventFilter) (*starknet.EventsChunk, error) {
	if f.events == nil {
		return &starknet.EventsChunk{Events: []*starknet.EmittedEvent{}}, nil
	}
	return f.events, nil
}

func (f *fakeProvider) Syncing(ctx context.Context) (*starknet.SyncStatus, error) {
	return f.sync, nil
}

func (f *fakeProvider) AddInvokeTransaction(ctx context.Context, invoke *starknet.BroadcastedInvoke) (*starknet.AddInvokeResponse, error) {
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return &starknet.AddInvokeResponse{TransactionHash: new(felt.Felt).SetUint64(0x5151)}, nil
}

func newTestHandler(provider starknet.Provider) *Handler {
	client := kakarot.NewClient(provider,
		new(felt.Felt).SetUint64(0x100), new(felt.Felt).SetUint64(0x200), testChainID)
	return New(client, "kakarot-rpc/v0.1.0", utils.NewNopZapLogger())
}

// blockFixture builds a two-transaction block where each transaction emits
// one event. The senders are felts whose low 20 bytes act as EVM addresses.
func blockFixture(t *testing.T) *fakeProvider {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	emitter := feltFromHex(t, "0x00112233445566778899aabbccddeeff00112233")

	mkTx := func(hash, sender uint64) *starknet.Transaction {
		return &starknet.Transaction{
			Hash:          new(felt.Felt).SetUint64(hash),
			Type:          starknet.TxnInvoke,
			Nonce:         new(felt.Felt).SetUint64(0),
			SenderAddress: new(felt.Felt).SetUint64(sender),
			Calldata:      executeCalldata(t, &to, big.NewInt(0), 50_000, nil),
			Signature: []*felt.Felt{
				new(felt.Felt).SetUint64(1), new(felt.Felt).SetUint64(0),
				new(felt.Felt).SetUint64(2), new(felt.Felt).SetUint64(0),
				new(felt.Felt).SetUint64(27),
			},
		}
	}
	mkReceipt := func(hash uint64) *starknet.TransactionReceipt {
		return &starknet.TransactionReceipt{
			Type:            starknet.TxnInvoke,
			TransactionHash: new(felt.Felt).SetUint64(hash),
			ActualFee:       new(felt.Felt).SetUint64(42_000),
			ExecutionStatus: starknet.ExecutionSucceeded,
			FinalityStatus:  starknet.FinalityAcceptedL2,
			BlockHash:       feltFromHex(t, "0xb10c"),
			BlockNumber:     9,
			Events: []*starknet.Event{
				{Keys: []*felt.Felt{emitter}, Data: byteFelts([]byte{1})},
			},
		}
	}

	txA, txB := mkTx(0xa1, 0xbb), mkTx(0xa2, 0xcc)
	return &fakeProvider{
		head: 9,
		block: &starknet.Block{
			Status:           starknet.BlockAcceptedL2,
			Hash:             feltFromHex(t, "0xb10c"),
			ParentHash:       feltFromHex(t, "0xb10b"),
			Number:           9,
			Timestamp:        1_700_000_000,
			SequencerAddress: new(felt.Felt).SetUint64(0x5e0),
			L1GasPrice: &starknet.ResourcePrice{
				PriceInWei: new(felt.Felt).SetUint64(2),
			},
			Transactions: []*starknet.Transaction{txA, txB},
		},
		receipts: map[string]*starknet.TransactionReceipt{
			txA.Hash.String(): mkReceipt(0xa1),
			txB.Hash.String(): mkReceipt(0xa2),
		},
		txs: map[string]*starknet.Transaction{
			txA.Hash.String(): txA,
			txB.Hash.String(): txB,
		},
	}
}

func TestChainID(t *testing.T) {
	handler := newTestHandler(&fakeProvider{})
	id, rpcErr := handler.ChainID()
	require.Nil(t, rpcErr)
	assert.Equal(t, testChainID, (*big.Int)(id))

	version, rpcErr := handler.NetVersion()
	require.Nil(t, rpcErr)
	assert.Equal(t, "1263227476", version)
}

func TestBlockNumberHandler(t *testing.T) {
	handler := newTestHandler(&fakeProvider{head: 77})
	num, rpcErr := handler.BlockNumber(context.Background())
	require.Nil(t, rpcErr)
	assert.Equal(t, hexutil.Uint64(77), num)
}

func TestSyncingNotSyncing(t *testing.T) {
	handler := newTestHandler(&fakeProvider{})
	result, rpcErr := handler.Syncing(context.Background())
	require.Nil(t, rpcErr)
	assert.Equal(t, false, result)
}

func TestSyncingInProgress(t *testing.T) {
	handler := newTestHandler(&fakeProvider{sync: &starknet.SyncStatus{
		StartingBlockNum: 1, CurrentBlockNum: 5, HighestBlockNum: 10,
	}})
	result, rpcErr := handler.Syncing(context.Background())
	require.Nil(t, rpcErr)
	status, ok := result.(*SyncStatus)
	require.True(t, ok)
	assert.Equal(t, hexutil.Uint64(5), status.CurrentBlock)
}

func TestGetBalanceUndeployed(t *testing.T) {
	handler := newTestHandler(&fakeProvider{callResults: map[string][]*felt.Felt{
		kakarot.Selector("compute_starknet_address").String(): {new(felt.Felt).SetUint64(0x77)},
		// no balanceOf entry: undeployed accounts read as empty
	}})
	balance, rpcErr := handler.GetBalance(context.Background(),
		common.HexToAddress("0x00000000000000000000000000000000000000aa"), LatestBlockNumber())
	require.Nil(t, rpcErr)
	assert.Zero(t, (*big.Int)(balance).Sign())
}

func TestAssembledBlockProperties(t *testing.T) {
	handler := newTestHandler(blockFixture(t))

	block, rpcErr := handler.GetBlockByNumber(context.Background(), LatestBlockNumber(), true)
	require.Nil(t, rpcErr)
	require.NotNil(t, block)

	assert.Equal(t, hexutil.Uint64(9), block.Number)
	require.Len(t, block.Transactions.Full, 2)

	// 2 * (42000 wei / 2 wei per gas)
	assert.Equal(t, hexutil.Uint64(42_000), block.GasUsed)

	// log indices form a contiguous block-scoped sequence
	assembled, rpcErr := handler.assemble(context.Background(), starknet.LatestBlockID())
	require.Nil(t, rpcErr)
	require.Len(t, assembled.receipts, 2)
	assert.Equal(t, uint(0), assembled.receipts[0].Logs[0].Index)
	assert.Equal(t, uint(1), assembled.receipts[1].Logs[0].Index)
	assert.Equal(t, assembled.receipts[0].GasUsed+assembled.receipts[1].GasUsed, block.GasUsed)

	// block bloom covers every log
	emitter := common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	assert.True(t, block.LogsBloom.Test(emitter.Bytes()))
}

func TestBlockByNumberHashesOnly(t *testing.T) {
	handler := newTestHandler(blockFixture(t))
	block, rpcErr := handler.GetBlockByNumber(context.Background(), LatestBlockNumber(), false)
	require.Nil(t, rpcErr)
	require.NotNil(t, block)
	assert.Nil(t, block.Transactions.Full)
	assert.Len(t, block.Transactions.Hashes, 2)
}

func TestBlockNotFoundIsNull(t *testing.T) {
	handler := newTestHandler(&fakeProvider{})
	block, rpcErr := handler.GetBlockByNumber(context.Background(), LatestBlockNumber(), false)
	require.Nil(t, rpcErr)
	assert.Nil(t, block)
}

func TestGetBlockTransactionCount(t *testing.T) {
	handler := newTestHandler(blockFixture(t))
	count, rpcErr := handler.GetBlockTransactionCountByNumber(context.Background(), LatestBlockNumber())
	require.Nil(t, rpcErr)
	assert.Equal(t, hexutil.Uint64(2), count)
}

func TestGetTransactionByBlockNumberAndIndex(t *testing.T) {
	handler := newTestHandler(blockFixture(t))

	tx, rpcErr := handler.GetTransactionByBlockNumberAndIndex(context.Background(), LatestBlockNumber(), 1)
	require.Nil(t, rpcErr)
	require.NotNil(t, tx)
	assert.Equal(t, hexutil.Uint64(1), *tx.TransactionIndex)

	tx, rpcErr = handler.GetTransactionByBlockNumberAndIndex(context.Background(), LatestBlockNumber(), 5)
	require.Nil(t, rpcErr)
	assert.Nil(t, tx)
}

func TestGetTransactionReceiptBlockScoped(t *testing.T) {
	handler := newTestHandler(blockFixture(t))

	receipt, rpcErr := handler.GetTransactionReceipt(context.Background(),
		common.HexToHash("0xa2"))
	require.Nil(t, rpcErr)
	require.NotNil(t, receipt)

	// second transaction of the block: index 1, its lone log at index 1
	assert.Equal(t, hexutil.Uint64(1), receipt.TransactionIndex)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, uint(1), receipt.Logs[0].Index)
	assert.Equal(t, hexutil.Uint64(42_000), receipt.CumulativeGasUsed)
}

func TestGetTransactionReceiptUnknownHash(t *testing.T) {
	handler := newTestHandler(&fakeProvider{})
	receipt, rpcErr := handler.GetTransactionReceipt(context.Background(), common.HexToHash("0x1234"))
	require.Nil(t, rpcErr)
	assert.Nil(t, receipt)
}

func TestGetTransactionByHash(t *testing.T) {
	handler := newTestHandler(blockFixture(t))

	tx, rpcErr := handler.GetTransactionByHash(context.Background(), common.HexToHash("0xa1"))
	require.Nil(t, rpcErr)
	require.NotNil(t, tx)
	require.NotNil(t, tx.BlockNumber)
	assert.Equal(t, hexutil.Uint64(9), *tx.BlockNumber)
	assert.Equal(t, hexutil.Uint64(50_000), tx.Gas)
}

func TestSendRawTransactionMalformed(t *testing.T) {
	handler := newTestHandler(&fakeProvider{})
	_, rpcErr := handler.SendRawTransaction(context.Background(), hexutil.Bytes{0xde, 0xad})
	require.NotNil(t, rpcErr)
	assert.Equal(t, ErrMalformedTransaction.Code, rpcErr.Code)
}

func TestSendRawTransactionUnknownAccount(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(testChainID), &types.LegacyTx{
		Nonce:    0,
		To:       &to,
		Gas:      21_000,
		GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	provider := &fakeProvider{
		callResults: map[string][]*felt.Felt{
			kakarot.Selector("compute_starknet_address").String(): {new(felt.Felt).SetUint64(0x77)},
		},
		invokeErr: &starknet.Error{Code: starknet.CodeContractNotFound, Message: "Contract not found"},
	}
	handler := newTestHandler(provider)

	_, rpcErr := handler.SendRawTransaction(context.Background(), raw)
	require.NotNil(t, rpcErr)
	assert.Equal(t, ErrUnknownAccount.Code, rpcErr.Code)
}

func TestCallCreationShapeSkipsAccountLookup(t *testing.T) {
	provider := &fakeProvider{}
	handler := newTestHandler(provider)

	data := hexutil.Bytes([]byte{0x60, 0x80})
	_, rpcErr := handler.Call(context.Background(), CallRequest{Data: &data}, LatestBlockNumber())
	// the upstream fake rejects the call; what matters is the call shape
	require.NotNil(t, rpcErr)

	// exactly one upstream call: the execute invocation against the core
	// contract, with no account resolution for the absent recipient
	require.Len(t, provider.calls, 1)
	assert.True(t, provider.calls[0].ContractAddress.Equal(new(felt.Felt).SetUint64(0x100)))
}

func TestEstimateGas(t *testing.T) {
	fixture := blockFixture(t)
	handler := newTestHandler(fixture)

	// fake provider rejects every call, which surfaces as a revert
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	_, rpcErr := handler.EstimateGas(context.Background(), CallRequest{To: &to}, LatestBlockNumber())
	require.NotNil(t, rpcErr)
	assert.Equal(t, ErrUpstreamRejected.Code, rpcErr.Code)
}

func TestGetLogs(t *testing.T) {
	emitter := feltFromHex(t, "0x00112233445566778899aabbccddeeff00112233")
	provider := &fakeProvider{events: &starknet.EventsChunk{
		Events: []*starknet.EmittedEvent{
			{
				Event:           starknet.Event{Keys: []*felt.Felt{emitter}, Data: byteFelts([]byte{7})},
				BlockHash:       feltFromHex(t, "0xb10c"),
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa1"),
			},
			{
				// malformed: no address key, dropped
				Event:           starknet.Event{},
				BlockHash:       feltFromHex(t, "0xb10c"),
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa2"),
			},
			{
				Event:           starknet.Event{Keys: []*felt.Felt{emitter}},
				BlockHash:       feltFromHex(t, "0xb10d"),
				BlockNumber:     4,
				TransactionHash: feltFromHex(t, "0xa3"),
			},
		},
	}}
	handler := newTestHandler(provider)

	logs, rpcErr := handler.GetLogs(context.Background(), FilterQuery{})
	require.Nil(t, rpcErr)
	require.Len(t, logs, 2)
	assert.Equal(t, uint64(3), logs[0].BlockNumber)
	assert.Equal(t, uint(0), logs[0].Index)
	// indices restart per block
	assert.Equal(t, uint64(4), logs[1].BlockNumber)
	assert.Equal(t, uint(0), logs[1].Index)
}

func TestGetLogsIndexSkipsDroppedEvents(t *testing.T) {
	emitter := feltFromHex(t, "0x00112233445566778899aabbccddeeff00112233")
	provider := &fakeProvider{events: &starknet.EventsChunk{
		Events: []*starknet.EmittedEvent{
			{
				// malformed: no address key, dropped
				Event:           starknet.Event{},
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa1"),
			},
			{
				Event:           starknet.Event{Keys: []*felt.Felt{emitter}},
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa1"),
			},
		},
	}}
	handler := newTestHandler(provider)

	logs, rpcErr := handler.GetLogs(context.Background(), FilterQuery{})
	require.Nil(t, rpcErr)
	require.Len(t, logs, 1)
	// survivors are numbered contiguously, matching the receipt path
	assert.Equal(t, uint(0), logs[0].Index)
}

func TestGetLogsTopicFilter(t *testing.T) {
	emitter := feltFromHex(t, "0x00112233445566778899aabbccddeeff00112233")
	other := common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000c0ffee")
	provider := &fakeProvider{events: &starknet.EventsChunk{
		Events: []*starknet.EmittedEvent{
			{
				Event:           starknet.Event{Keys: append([]*felt.Felt{emitter}, topicFelts(transferTopic)...)},
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa1"),
			},
			{
				Event:           starknet.Event{Keys: append([]*felt.Felt{emitter}, topicFelts(other)...)},
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa2"),
			},
		},
	}}
	handler := newTestHandler(provider)

	logs, rpcErr := handler.GetLogs(context.Background(), FilterQuery{
		Topics: []topicAlternatives{{transferTopic}},
	})
	require.Nil(t, rpcErr)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Topics, 1)
	assert.Equal(t, transferTopic, logs[0].Topics[0])
}

func TestFilterKeysTopicSlots(t *testing.T) {
	keys := filterKeys(FilterQuery{Topics: []topicAlternatives{{transferTopic}}})

	// address slot plus a low and a high slot for the one topic position
	require.Len(t, keys, 3)
	low, high := kakarot.HashToFeltPair(transferTopic)
	require.Len(t, keys[1], 1)
	require.Len(t, keys[2], 1)
	assert.True(t, keys[1][0].Equal(low))
	assert.True(t, keys[2][0].Equal(high))
}

func TestGetLogsAddressFilter(t *testing.T) {
	emitter := feltFromHex(t, "0x00112233445566778899aabbccddeeff00112233")
	provider := &fakeProvider{events: &starknet.EventsChunk{
		Events: []*starknet.EmittedEvent{
			{
				Event:           starknet.Event{Keys: []*felt.Felt{emitter}},
				BlockNumber:     3,
				TransactionHash: feltFromHex(t, "0xa1"),
			},
		},
	}}
	handler := newTestHandler(provider)

	logs, rpcErr := handler.GetLogs(context.Background(), FilterQuery{
		Addresses: addressOrList{common.HexToAddress("0x00000000000000000000000000000000000000ff")},
	})
	require.Nil(t, rpcErr)
	assert.Empty(t, logs)
}

func TestFeeHistoryFlat(t *testing.T) {
	handler := newTestHandler(blockFixture(t))
	history, rpcErr := handler.FeeHistory(context.Background(), 3, LatestBlockNumber(), []float64{50})
	require.Nil(t, rpcErr)
	assert.Equal(t, hexutil.Uint64(7), history.OldestBlock)
	assert.Len(t, history.BaseFeePerGas, 4)
	assert.Len(t, history.Reward, 3)
}

func TestAccountsEmpty(t *testing.T) {
	handler := newTestHandler(&fakeProvider{})
	accounts, rpcErr := handler.Accounts()
	require.Nil(t, rpcErr)
	assert.Empty(t, accounts)
}
