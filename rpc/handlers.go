// Package rpc exposes the Ethereum JSON-RPC method set, translating each
// call onto Kakarot view calls and StarkNet queries.
package rpc

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
)

// estimateGasCeiling is returned by eth_estimateGas once the call has been
// proven executable. Kakarot meters execution upstream, so the gateway has
// no per-opcode accounting to refine the number with.
const estimateGasCeiling = 1_000_000

type Handler struct {
	client  *kakarot.Client
	version string
	log     utils.SimpleLogger

	listener EventListener
}

func New(client *kakarot.Client, version string, logger utils.SimpleLogger) *Handler {
	return &Handler{
		client:   client,
		version:  version,
		log:      logger,
		listener: &SelectiveListener{},
	}
}

// WithListener registers an EventListener.
func (h *Handler) WithListener(listener EventListener) *Handler {
	h.listener = listener
	return h
}

// ChainID implements eth_chainId.
func (h *Handler) ChainID() (*hexutil.Big, *jsonrpc.Error) {
	return (*hexutil.Big)(h.client.ChainID()), nil
}

// NetVersion implements net_version.
func (h *Handler) NetVersion() (string, *jsonrpc.Error) {
	return h.client.ChainID().String(), nil
}

// ClientVersion implements web3_clientVersion.
func (h *Handler) ClientVersion() (string, *jsonrpc.Error) {
	return h.version, nil
}

// BlockNumber implements eth_blockNumber.
func (h *Handler) BlockNumber(ctx context.Context) (hexutil.Uint64, *jsonrpc.Error) {
	num, err := h.client.Provider().BlockNumber(ctx)
	if err != nil {
		return 0, upstreamErr(err)
	}
	return hexutil.Uint64(num), nil
}

// Syncing implements eth_syncing. The result is false when the upstream
// node is caught up, a status object otherwise.
func (h *Handler) Syncing(ctx context.Context) (any, *jsonrpc.Error) {
	status, err := h.client.Provider().Syncing(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}
	if status == nil {
		return false, nil
	}
	return &SyncStatus{
		StartingBlock: hexutil.Uint64(status.StartingBlockNum),
		CurrentBlock:  hexutil.Uint64(status.CurrentBlockNum),
		HighestBlock:  hexutil.Uint64(status.HighestBlockNum),
	}, nil
}

// GasPrice implements eth_gasPrice, reporting the upstream L1 gas price.
func (h *Handler) GasPrice(ctx context.Context) (*hexutil.Big, *jsonrpc.Error) {
	price, err := h.client.GasPrice(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return (*hexutil.Big)(price), nil
}

// MaxPriorityFeePerGas implements eth_maxPriorityFeePerGas. There is no fee
// market, so no tip is ever effective.
func (h *Handler) MaxPriorityFeePerGas() (*hexutil.Big, *jsonrpc.Error) {
	return (*hexutil.Big)(new(big.Int)), nil
}

// FeeHistory implements eth_feeHistory with a flat fee schedule.
func (h *Handler) FeeHistory(ctx context.Context, blockCount hexutil.Uint64, newestBlock BlockNumber, rewardPercentiles []float64) (*FeeHistory, *jsonrpc.Error) {
	price, err := h.client.GasPrice(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}

	count := uint64(blockCount)
	if count == 0 {
		count = 1
	}
	newest, rpcErr := h.resolveBlockNumber(ctx, newestBlock)
	if rpcErr != nil {
		return nil, rpcErr
	}
	oldest := uint64(0)
	if newest >= count {
		oldest = newest - count + 1
	}

	history := &FeeHistory{
		OldestBlock:   hexutil.Uint64(oldest),
		BaseFeePerGas: make([]*hexutil.Big, count+1),
		GasUsedRatio:  make([]float64, count),
	}
	for i := range history.BaseFeePerGas {
		history.BaseFeePerGas[i] = (*hexutil.Big)(price)
	}
	if len(rewardPercentiles) > 0 {
		history.Reward = make([][]*hexutil.Big, count)
		for i := range history.Reward {
			history.Reward[i] = make([]*hexutil.Big, len(rewardPercentiles))
			for j := range history.Reward[i] {
				history.Reward[i][j] = (*hexutil.Big)(new(big.Int))
			}
		}
	}
	return history, nil
}

// Accounts implements eth_accounts. The gateway holds no keys.
func (h *Handler) Accounts() ([]common.Address, *jsonrpc.Error) {
	return []common.Address{}, nil
}

// GetBalance implements eth_getBalance.
func (h *Handler) GetBalance(ctx context.Context, address common.Address, blockNumber BlockNumber) (*hexutil.Big, *jsonrpc.Error) {
	balance, err := h.client.Balance(ctx, address, blockNumber.StarknetID())
	if err != nil {
		return nil, upstreamErr(err)
	}
	return (*hexutil.Big)(balance), nil
}

// GetTransactionCount implements eth_getTransactionCount.
func (h *Handler) GetTransactionCount(ctx context.Context, address common.Address, blockNumber BlockNumber) (hexutil.Uint64, *jsonrpc.Error) {
	nonce, err := h.client.Nonce(ctx, address, blockNumber.StarknetID())
	if err != nil {
		return 0, upstreamErr(err)
	}
	return hexutil.Uint64(nonce), nil
}

// GetCode implements eth_getCode.
func (h *Handler) GetCode(ctx context.Context, address common.Address, blockNumber BlockNumber) (hexutil.Bytes, *jsonrpc.Error) {
	code, err := h.client.Code(ctx, address, blockNumber.StarknetID())
	if err != nil {
		return nil, upstreamErr(err)
	}
	return code, nil
}

// GetStorageAt implements eth_getStorageAt.
func (h *Handler) GetStorageAt(ctx context.Context, address common.Address, key *hexutil.Big, blockNumber BlockNumber) (common.Hash, *jsonrpc.Error) {
	slot := common.Hash{}
	if key != nil {
		slot = common.BigToHash((*big.Int)(key))
	}
	value, err := h.client.StorageAt(ctx, address, slot, blockNumber.StarknetID())
	if err != nil {
		return common.Hash{}, upstreamErr(err)
	}
	return value, nil
}

// Call implements eth_call. Calls without a recipient are creation-shaped:
// they are routed through the decoder's creation path untouched, with no
// account lookup for the absent recipient.
func (h *Handler) Call(ctx context.Context, call CallRequest, blockNumber BlockNumber) (hexutil.Bytes, *jsonrpc.Error) {
	ret, err := h.client.CallContract(ctx, call.To, call.Payload(), blockNumber.StarknetID())
	if err != nil {
		return nil, upstreamErr(err)
	}
	return ret, nil
}

// EstimateGas implements eth_estimateGas. The call is executed to prove it
// would not revert; the returned bound is fixed.
func (h *Handler) EstimateGas(ctx context.Context, call CallRequest, blockNumber BlockNumber) (hexutil.Uint64, *jsonrpc.Error) {
	if _, rpcErr := h.Call(ctx, call, blockNumber); rpcErr != nil {
		return 0, rpcErr
	}
	return hexutil.Uint64(estimateGasCeiling), nil
}

// SendRawTransaction implements eth_sendRawTransaction.
func (h *Handler) SendRawTransaction(ctx context.Context, raw hexutil.Bytes) (common.Hash, *jsonrpc.Error) {
	hash, err := h.client.SubmitTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, submissionErr(err)
	}
	return hash, nil
}

func (h *Handler) resolveBlockNumber(ctx context.Context, blockNumber BlockNumber) (uint64, *jsonrpc.Error) {
	if blockNumber.byNum {
		return blockNumber.Number, nil
	}
	if blockNumber.Earliest {
		return 0, nil
	}
	num, err := h.client.Provider().BlockNumber(ctx)
	if err != nil {
		return 0, upstreamErr(err)
	}
	return num, nil
}

// Methods returns the method descriptors to register on a jsonrpc.Server.
func (h *Handler) Methods() []jsonrpc.Method {
	return []jsonrpc.Method{
		{
			Name:    "eth_chainId",
			Handler: h.ChainID,
		},
		{
			Name:    "net_version",
			Handler: h.NetVersion,
		},
		{
			Name:    "web3_clientVersion",
			Handler: h.ClientVersion,
		},
		{
			Name:    "eth_blockNumber",
			Handler: h.BlockNumber,
		},
		{
			Name:    "eth_syncing",
			Handler: h.Syncing,
		},
		{
			Name:    "eth_gasPrice",
			Handler: h.GasPrice,
		},
		{
			Name:    "eth_maxPriorityFeePerGas",
			Handler: h.MaxPriorityFeePerGas,
		},
		{
			Name:    "eth_feeHistory",
			Params:  []jsonrpc.Parameter{{Name: "blockCount"}, {Name: "newestBlock"}, {Name: "rewardPercentiles", Optional: true}},
			Handler: h.FeeHistory,
		},
		{
			Name:    "eth_accounts",
			Handler: h.Accounts,
		},
		{
			Name:    "eth_getBalance",
			Params:  []jsonrpc.Parameter{{Name: "address"}, {Name: "blockNumber", Optional: true}},
			Handler: h.GetBalance,
		},
		{
			Name:    "eth_getTransactionCount",
			Params:  []jsonrpc.Parameter{{Name: "address"}, {Name: "blockNumber", Optional: true}},
			Handler: h.GetTransactionCount,
		},
		{
			Name:    "eth_getCode",
			Params:  []jsonrpc.Parameter{{Name: "address"}, {Name: "blockNumber", Optional: true}},
			Handler: h.GetCode,
		},
		{
			Name:    "eth_getStorageAt",
			Params:  []jsonrpc.Parameter{{Name: "address"}, {Name: "key"}, {Name: "blockNumber", Optional: true}},
			Handler: h.GetStorageAt,
		},
		{
			Name:    "eth_call",
			Params:  []jsonrpc.Parameter{{Name: "transaction"}, {Name: "blockNumber", Optional: true}},
			Handler: h.Call,
		},
		{
			Name:    "eth_estimateGas",
			Params:  []jsonrpc.Parameter{{Name: "transaction"}, {Name: "blockNumber", Optional: true}},
			Handler: h.EstimateGas,
		},
		{
			Name:    "eth_sendRawTransaction",
			Params:  []jsonrpc.Parameter{{Name: "transaction"}},
			Handler: h.SendRawTransaction,
		},
		{
			Name:    "eth_getBlockByNumber",
			Params:  []jsonrpc.Parameter{{Name: "blockNumber"}, {Name: "fullTransactions"}},
			Handler: h.GetBlockByNumber,
		},
		{
			Name:    "eth_getBlockByHash",
			Params:  []jsonrpc.Parameter{{Name: "blockHash"}, {Name: "fullTransactions"}},
			Handler: h.GetBlockByHash,
		},
		{
			Name:    "eth_getBlockTransactionCountByNumber",
			Params:  []jsonrpc.Parameter{{Name: "blockNumber"}},
			Handler: h.GetBlockTransactionCountByNumber,
		},
		{
			Name:    "eth_getBlockTransactionCountByHash",
			Params:  []jsonrpc.Parameter{{Name: "blockHash"}},
			Handler: h.GetBlockTransactionCountByHash,
		},
		{
			Name:    "eth_getTransactionByHash",
			Params:  []jsonrpc.Parameter{{Name: "transactionHash"}},
			Handler: h.GetTransactionByHash,
		},
		{
			Name:    "eth_getTransactionByBlockNumberAndIndex",
			Params:  []jsonrpc.Parameter{{Name: "blockNumber"}, {Name: "index"}},
			Handler: h.GetTransactionByBlockNumberAndIndex,
		},
		{
			Name:    "eth_getTransactionByBlockHashAndIndex",
			Params:  []jsonrpc.Parameter{{Name: "blockHash"}, {Name: "index"}},
			Handler: h.GetTransactionByBlockHashAndIndex,
		},
		{
			Name:    "eth_getTransactionReceipt",
			Params:  []jsonrpc.Parameter{{Name: "transactionHash"}},
			Handler: h.GetTransactionReceipt,
		},
		{
			Name:    "eth_getLogs",
			Params:  []jsonrpc.Parameter{{Name: "filter"}},
			Handler: h.GetLogs,
		},
	}
}

// submissionErr maps transaction decode failures onto the error taxonomy.
func submissionErr(err error) *jsonrpc.Error {
	switch {
	case errors.Is(err, kakarot.ErrMalformedTransaction):
		return ErrMalformedTransaction.CloneWithData(err.Error())
	case errors.Is(err, kakarot.ErrInvalidSignature):
		return ErrInvalidSignature.CloneWithData(err.Error())
	case errors.Is(err, kakarot.ErrUnsupportedTxType):
		return ErrUnsupportedTxType.CloneWithData(err.Error())
	case errors.Is(err, kakarot.ErrUnknownAccount):
		return ErrUnknownAccount.CloneWithData(err.Error())
	default:
		return upstreamErr(err)
	}
}
