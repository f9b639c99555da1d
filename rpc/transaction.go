package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
)

// resolveTxHash maps a queried transaction hash onto the StarkNet hash
// space. Hashes of transactions submitted through this gateway are known to
// the handle cache; anything else is assumed to already be a StarkNet hash.
func (h *Handler) resolveTxHash(hash common.Hash) *felt.Felt {
	if snHash, found := h.client.Handles().Get(hash); found {
		return snHash
	}
	return kakarot.HashToFelt(hash)
}

// GetTransactionByHash implements eth_getTransactionByHash. Unknown hashes
// yield null.
func (h *Handler) GetTransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, *jsonrpc.Error) {
	snHash := h.resolveTxHash(hash)
	snTx, err := h.client.Provider().TransactionByHash(ctx, snHash)
	if starknet.IsTxnHashNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, upstreamErr(err)
	}

	if snTx.Type != starknet.TxnInvoke || snTx.SenderAddress == nil {
		return nil, nil
	}
	sender := h.client.SafeEvmAddress(ctx, snTx.SenderAddress, starknet.LatestBlockID())
	gasPrice, err := h.client.GasPrice(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}
	tx, ok := encodeFromExecution(snTx, sender, gasPrice)
	if !ok {
		return nil, nil
	}
	if _, submitted := h.client.Handles().Get(hash); submitted {
		// Echo the hash the caller submitted under.
		tx.Hash = hash
	}

	// Pick up placement from the receipt; pending transactions have none.
	if snReceipt, rerr := h.client.Provider().TransactionReceiptByHash(ctx, snHash); rerr == nil && snReceipt.BlockHash != nil {
		blockHash := kakarot.FeltToHash(snReceipt.BlockHash)
		blockNumber := hexutil.Uint64(snReceipt.BlockNumber)
		tx.BlockHash = &blockHash
		tx.BlockNumber = &blockNumber
	}
	return tx, nil
}

// GetTransactionByBlockNumberAndIndex implements
// eth_getTransactionByBlockNumberAndIndex.
func (h *Handler) GetTransactionByBlockNumberAndIndex(ctx context.Context, blockNumber BlockNumber, index hexutil.Uint64) (*Transaction, *jsonrpc.Error) {
	return h.transactionByBlockAndIndex(ctx, blockNumber.StarknetID(), index)
}

// GetTransactionByBlockHashAndIndex implements
// eth_getTransactionByBlockHashAndIndex.
func (h *Handler) GetTransactionByBlockHashAndIndex(ctx context.Context, blockHash common.Hash, index hexutil.Uint64) (*Transaction, *jsonrpc.Error) {
	return h.transactionByBlockAndIndex(ctx, starknet.BlockIDFromHash(kakarot.HashToFelt(blockHash)), index)
}

func (h *Handler) transactionByBlockAndIndex(ctx context.Context, id starknet.BlockID, index hexutil.Uint64) (*Transaction, *jsonrpc.Error) {
	assembled, rpcErr := h.assemble(ctx, id)
	if rpcErr != nil {
		if rpcErr.Code == ErrBlockNotFound.Code {
			return nil, nil
		}
		return nil, rpcErr
	}
	if uint64(index) >= uint64(len(assembled.txs)) {
		return nil, nil
	}
	return assembled.txs[index], nil
}

// GetTransactionReceipt implements eth_getTransactionReceipt. The receipt
// is produced by assembling the enclosing block, so log indices are scoped
// to the block's execution order rather than the single transaction.
func (h *Handler) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, *jsonrpc.Error) {
	snHash := h.resolveTxHash(hash)
	snReceipt, err := h.client.Provider().TransactionReceiptByHash(ctx, snHash)
	if starknet.IsTxnHashNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, upstreamErr(err)
	}
	if snReceipt.BlockHash == nil {
		// Not yet in a block.
		return nil, nil
	}

	assembled, rpcErr := h.assemble(ctx, starknet.BlockIDFromHash(snReceipt.BlockHash))
	if rpcErr != nil {
		return nil, rpcErr
	}
	wanted := kakarot.FeltToHash(snReceipt.TransactionHash)
	for _, receipt := range assembled.receipts {
		if receipt.TransactionHash == wanted {
			return receipt, nil
		}
	}
	return nil, nil
}
