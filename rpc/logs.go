package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
)

const eventChunkSize = 1024

// GetLogs implements eth_getLogs. The Ethereum filter is translated into a
// StarkNet event filter: addresses select on the address key position,
// topics on the following key positions. Results stream in block order, so
// log indices restart at zero per block.
func (h *Handler) GetLogs(ctx context.Context, filter FilterQuery) ([]*types.Log, *jsonrpc.Error) {
	snFilter := starknet.EventFilter{
		Keys:      filterKeys(filter),
		ChunkSize: eventChunkSize,
	}
	if filter.BlockHash != nil {
		id := starknet.BlockIDFromHash(kakarot.HashToFelt(*filter.BlockHash))
		snFilter.FromBlock = &id
		snFilter.ToBlock = &id
	} else {
		from, to := starknet.LatestBlockID(), starknet.LatestBlockID()
		if filter.FromBlock != nil {
			from = filter.FromBlock.StarknetID()
		}
		if filter.ToBlock != nil {
			to = filter.ToBlock.StarknetID()
		}
		snFilter.FromBlock = &from
		snFilter.ToBlock = &to
	}

	logs := []*types.Log{}
	indexInBlock := uint(0)
	currentBlock := uint64(0)
	for {
		chunk, err := h.client.Provider().Events(ctx, snFilter)
		if err != nil {
			return nil, upstreamErr(err)
		}
		for _, emitted := range chunk.Events {
			if emitted.BlockNumber != currentBlock {
				currentBlock = emitted.BlockNumber
				indexInBlock = 0
			}
			log, translateErr := translateLog(&emitted.Event)
			if translateErr != nil {
				// dropped events take no index slot, matching the block
				// assembly numbering
				h.dropLog(&emitted.Event, translateErr)
				continue
			}
			log.BlockNumber = emitted.BlockNumber
			if emitted.BlockHash != nil {
				log.BlockHash = kakarot.FeltToHash(emitted.BlockHash)
			}
			log.TxHash = kakarot.FeltToHash(emitted.TransactionHash)
			log.Index = indexInBlock
			indexInBlock++

			if matchesFilter(log, filter) {
				logs = append(logs, log)
			}
		}
		if chunk.ContinuationToken == "" {
			break
		}
		snFilter.ContinuationToken = chunk.ContinuationToken
	}
	return logs, nil
}

// filterKeys lays the Ethereum filter out on StarkNet key positions: slot 0
// holds the address alternatives, and each topic position occupies two
// slots carrying the low then high 128-bit halves of its alternatives. An
// empty slot matches anything.
func filterKeys(filter FilterQuery) [][]*felt.Felt {
	keys := [][]*felt.Felt{{}}
	keys[0] = append(keys[0], utils.Map(filter.Addresses, kakarot.AddressToFelt)...)
	for _, alternatives := range filter.Topics {
		lows, highs := []*felt.Felt{}, []*felt.Felt{}
		for _, topic := range alternatives {
			low, high := kakarot.HashToFeltPair(topic)
			lows = append(lows, low)
			highs = append(highs, high)
		}
		keys = append(keys, lows, highs)
	}
	return keys
}

// matchesFilter re-checks the translated log against the original filter.
// The upstream match treats the low and high halves of a topic as
// independent slots, so alternative lists can cross-match; this eliminates
// those.
func matchesFilter(log *types.Log, filter FilterQuery) bool {
	if len(filter.Addresses) > 0 && !utils.AnyOf(log.Address, filter.Addresses...) {
		return false
	}
	for i, alternatives := range filter.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(log.Topics) || !utils.AnyOf(log.Topics[i], alternatives...) {
			return false
		}
	}
	return true
}
