package kakarot

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
)

// HandleCache correlates Ethereum transaction hashes with the StarkNet
// invoke hashes that carried them. It is the only way to serve
// eth_getTransactionByHash/eth_getTransactionReceipt for transactions this
// gateway submitted, since the two hash spaces are unrelated. Safe for
// concurrent use.
type HandleCache struct {
	cache *lru.Cache[common.Hash, common.Hash]
}

func NewHandleCache(capacity int) *HandleCache {
	return &HandleCache{cache: lru.NewCache[common.Hash, common.Hash](capacity)}
}

func (h *HandleCache) Add(ethHash common.Hash, starknetHash *felt.Felt) {
	h.cache.Add(ethHash, starknetHash.EthHash())
}

// Get returns the StarkNet transaction hash recorded for ethHash.
func (h *HandleCache) Get(ethHash common.Hash) (*felt.Felt, bool) {
	snHash, found := h.cache.Get(ethHash)
	if !found {
		return nil, false
	}
	return new(felt.Felt).SetEthHash(snHash), true
}
