package starknet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kkrt-labs/kakarot-rpc-go/felt"
)

// BlockID identifies the block a query runs against: a tag ("latest" or
// "pending"), a block hash, or a block number.
type BlockID struct {
	Latest  bool
	Pending bool
	Hash    *felt.Felt
	Number  uint64
	byNum   bool
}

func LatestBlockID() BlockID {
	return BlockID{Latest: true}
}

func PendingBlockID() BlockID {
	return BlockID{Pending: true}
}

func BlockIDFromNumber(num uint64) BlockID {
	return BlockID{Number: num, byNum: true}
}

func BlockIDFromHash(hash *felt.Felt) BlockID {
	return BlockID{Hash: hash}
}

func (b BlockID) MarshalJSON() ([]byte, error) {
	switch {
	case b.Latest:
		return []byte(`"latest"`), nil
	case b.Pending:
		return []byte(`"pending"`), nil
	case b.Hash != nil:
		return json.Marshal(map[string]*felt.Felt{"block_hash": b.Hash})
	case b.byNum:
		return json.Marshal(map[string]uint64{"block_number": b.Number})
	default:
		return nil, errors.New("unset block id")
	}
}

func (b *BlockID) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"latest"`:
		*b = LatestBlockID()
		return nil
	case `"pending"`:
		*b = PendingBlockID()
		return nil
	}

	var fields struct {
		Hash   *felt.Felt `json:"block_hash"`
		Number *uint64    `json:"block_number"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	switch {
	case fields.Hash != nil:
		*b = BlockIDFromHash(fields.Hash)
	case fields.Number != nil:
		*b = BlockIDFromNumber(*fields.Number)
	default:
		return fmt.Errorf("unknown block id %q", data)
	}
	return nil
}

func (b BlockID) String() string {
	switch {
	case b.Latest:
		return "latest"
	case b.Pending:
		return "pending"
	case b.Hash != nil:
		return b.Hash.String()
	default:
		return fmt.Sprintf("%d", b.Number)
	}
}

type BlockStatus uint8

const (
	BlockPending BlockStatus = iota + 1
	BlockAcceptedL2
	BlockAcceptedL1
	BlockRejected
)

func (s *BlockStatus) UnmarshalText(data []byte) error {
	switch str := string(data); str {
	case "PENDING":
		*s = BlockPending
	case "ACCEPTED_ON_L2":
		*s = BlockAcceptedL2
	case "ACCEPTED_ON_L1":
		*s = BlockAcceptedL1
	case "REJECTED":
		*s = BlockRejected
	default:
		return fmt.Errorf("unknown block status %q", str)
	}
	return nil
}

func (s BlockStatus) MarshalText() ([]byte, error) {
	switch s {
	case BlockPending:
		return []byte("PENDING"), nil
	case BlockAcceptedL2:
		return []byte("ACCEPTED_ON_L2"), nil
	case BlockAcceptedL1:
		return []byte("ACCEPTED_ON_L1"), nil
	case BlockRejected:
		return []byte("REJECTED"), nil
	default:
		return nil, fmt.Errorf("unknown block status %d", s)
	}
}

type ResourcePrice struct {
	PriceInWei *felt.Felt `json:"price_in_wei"`
	PriceInFri *felt.Felt `json:"price_in_fri"`
}

// Block is the starknet_getBlockWithTxs response. Hash and NewRoot are nil
// for pending blocks.
type Block struct {
	Status           BlockStatus    `json:"status"`
	Hash             *felt.Felt     `json:"block_hash,omitempty"`
	ParentHash       *felt.Felt     `json:"parent_hash"`
	Number           uint64         `json:"block_number"`
	NewRoot          *felt.Felt     `json:"new_root,omitempty"`
	Timestamp        uint64         `json:"timestamp"`
	SequencerAddress *felt.Felt     `json:"sequencer_address"`
	L1GasPrice       *ResourcePrice `json:"l1_gas_price"`
	Version          string         `json:"starknet_version"`
	Transactions     []*Transaction `json:"transactions"`
}

func (b *Block) GasPriceWei() *felt.Felt {
	if b.L1GasPrice == nil || b.L1GasPrice.PriceInWei == nil {
		return &felt.Zero
	}
	return b.L1GasPrice.PriceInWei
}
