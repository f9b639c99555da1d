package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
	"github.com/sourcegraph/conc/iter"
)

// blockGasLimit is the fixed gas limit sentinel reported in block headers.
// The underlying chain bounds execution by fees, not block gas.
const blockGasLimit = 30_000_000

// assembledBlock carries a translated block together with its receipts in
// execution order, so receipt queries can reuse the assembly.
type assembledBlock struct {
	header   *Block
	txs      []*Transaction
	receipts []*Receipt
}

type txEntry struct {
	tx        *Transaction
	snReceipt *starknet.TransactionReceipt
}

// assemble translates the identified StarkNet block into its Ethereum view.
// Per-transaction receipt resolution runs concurrently but results keep the
// block's execution order, which fixes transaction and log indexing. Header
// fields without a StarkNet analog hold fixed zero sentinels so responses
// stay stable across requests.
func (h *Handler) assemble(ctx context.Context, id starknet.BlockID) (*assembledBlock, *jsonrpc.Error) {
	snBlock, err := h.client.Provider().BlockWithTxs(ctx, id)
	if err != nil {
		return nil, upstreamErr(err)
	}

	gasPrice := snBlock.GasPriceWei().BigInt(new(big.Int))
	entries, err := iter.MapErr(snBlock.Transactions, func(item **starknet.Transaction) (*txEntry, error) {
		snTx := *item
		if snTx.Type != starknet.TxnInvoke || snTx.SenderAddress == nil {
			return nil, nil // not Kakarot traffic
		}
		sender := h.client.SafeEvmAddress(ctx, snTx.SenderAddress, id)
		ethTx, ok := encodeFromExecution(snTx, sender, gasPrice)
		if !ok {
			return nil, nil
		}
		snReceipt, rerr := h.client.Provider().TransactionReceiptByHash(ctx, snTx.Hash)
		if rerr != nil {
			return nil, rerr
		}
		return &txEntry{tx: ethTx, snReceipt: snReceipt}, nil
	})
	if err != nil {
		return nil, upstreamErr(err)
	}

	blockHash := common.Hash{}
	if snBlock.Hash != nil {
		blockHash = kakarot.FeltToHash(snBlock.Hash)
	}
	blockNumber := hexutil.Uint64(snBlock.Number)

	assembled := &assembledBlock{
		header: &Block{
			Number:        blockNumber,
			Hash:          blockHash,
			ParentHash:    parentHash(snBlock),
			Sha3Uncles:    emptyUnclesHash,
			Miner:         kakarot.SliceToAddress(snBlock.SequencerAddress),
			Difficulty:    (*hexutil.Big)(new(big.Int)),
			GasLimit:      hexutil.Uint64(blockGasLimit),
			Timestamp:     hexutil.Uint64(snBlock.Timestamp),
			BaseFeePerGas: (*hexutil.Big)(gasPrice),
			Uncles:        []common.Hash{},
		},
	}

	cumulative := hexutil.Uint64(0)
	for _, entry := range utils.Filter(entries, func(e *txEntry) bool { return e != nil }) {
		index := hexutil.Uint64(len(assembled.txs))
		entry.tx.BlockHash = &blockHash
		entry.tx.BlockNumber = &blockNumber
		entry.tx.TransactionIndex = &index

		receipt := translateReceipt(entry.snReceipt, entry.tx, h.dropLog)
		cumulative += receipt.GasUsed
		receipt.CumulativeGasUsed = cumulative

		assembled.txs = append(assembled.txs, entry.tx)
		assembled.receipts = append(assembled.receipts, receipt)
	}
	sealLogIndices(assembled.receipts)

	assembled.header.GasUsed = cumulative
	for _, receipt := range assembled.receipts {
		orBloom(&assembled.header.LogsBloom, receipt.LogsBloom)
	}
	return assembled, nil
}

func (h *Handler) blockView(ctx context.Context, id starknet.BlockID, fullTransactions bool) (*Block, *jsonrpc.Error) {
	assembled, rpcErr := h.assemble(ctx, id)
	if rpcErr != nil {
		if rpcErr.Code == ErrBlockNotFound.Code {
			return nil, nil
		}
		return nil, rpcErr
	}
	block := assembled.header
	if fullTransactions {
		block.Transactions = BlockTransactions{Full: assembled.txs}
	} else {
		hashes := utils.Map(assembled.txs, func(tx *Transaction) common.Hash { return tx.Hash })
		block.Transactions = BlockTransactions{Hashes: hashes}
	}
	return block, nil
}

// GetBlockByNumber implements eth_getBlockByNumber. Unknown blocks yield
// null, matching Ethereum convention.
func (h *Handler) GetBlockByNumber(ctx context.Context, blockNumber BlockNumber, fullTransactions bool) (*Block, *jsonrpc.Error) {
	return h.blockView(ctx, blockNumber.StarknetID(), fullTransactions)
}

// GetBlockByHash implements eth_getBlockByHash. Block hashes are surfaced
// untranslated from StarkNet, so lookups use the hash as-is.
func (h *Handler) GetBlockByHash(ctx context.Context, blockHash common.Hash, fullTransactions bool) (*Block, *jsonrpc.Error) {
	return h.blockView(ctx, starknet.BlockIDFromHash(kakarot.HashToFelt(blockHash)), fullTransactions)
}

// GetBlockTransactionCountByNumber implements eth_getBlockTransactionCountByNumber.
func (h *Handler) GetBlockTransactionCountByNumber(ctx context.Context, blockNumber BlockNumber) (hexutil.Uint64, *jsonrpc.Error) {
	assembled, rpcErr := h.assemble(ctx, blockNumber.StarknetID())
	if rpcErr != nil {
		return 0, rpcErr
	}
	return hexutil.Uint64(len(assembled.txs)), nil
}

// GetBlockTransactionCountByHash implements eth_getBlockTransactionCountByHash.
func (h *Handler) GetBlockTransactionCountByHash(ctx context.Context, blockHash common.Hash) (hexutil.Uint64, *jsonrpc.Error) {
	assembled, rpcErr := h.assemble(ctx, starknet.BlockIDFromHash(kakarot.HashToFelt(blockHash)))
	if rpcErr != nil {
		return 0, rpcErr
	}
	return hexutil.Uint64(len(assembled.txs)), nil
}

func (h *Handler) dropLog(event *starknet.Event, err error) {
	h.log.Warnw("Dropping untranslatable event", "err", err, "fromAddress", event.FromAddress)
	h.listener.OnTranslationWarning(err.Error())
}

func parentHash(snBlock *starknet.Block) common.Hash {
	if snBlock.ParentHash == nil {
		return common.Hash{}
	}
	return kakarot.FeltToHash(snBlock.ParentHash)
}

func orBloom(dst *types.Bloom, src types.Bloom) {
	for i := range dst {
		dst[i] |= src[i]
	}
}

// emptyUnclesHash is keccak256(rlp([])), the canonical uncle hash of every
// post-merge block.
var emptyUnclesHash = common.HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")
