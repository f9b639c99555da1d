package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
)

// BlockNumber is the Ethereum "block number or tag" request parameter:
// a tag string or a hex-encoded number.
type BlockNumber struct {
	Latest   bool
	Pending  bool
	Earliest bool
	Number   uint64
	byNum    bool
}

func LatestBlockNumber() BlockNumber {
	return BlockNumber{Latest: true}
}

func (b *BlockNumber) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag {
	case "latest", "safe", "finalized":
		*b = BlockNumber{Latest: true}
	case "pending":
		*b = BlockNumber{Pending: true}
	case "earliest":
		*b = BlockNumber{Earliest: true}
	default:
		num, err := hexutil.DecodeUint64(tag)
		if err != nil {
			// Some clients send unprefixed decimal numbers.
			if num, err = strconv.ParseUint(tag, 10, 64); err != nil {
				return fmt.Errorf("invalid block number %q", tag)
			}
		}
		*b = BlockNumber{Number: num, byNum: true}
	}
	return nil
}

func (b BlockNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b BlockNumber) String() string {
	switch {
	case b.Pending:
		return "pending"
	case b.Earliest:
		return "earliest"
	case b.byNum:
		return hexutil.EncodeUint64(b.Number)
	default:
		return "latest"
	}
}

// StarknetID maps the Ethereum tag onto the upstream block identifier. The
// chains share block numbering since Kakarot transactions live inside
// StarkNet blocks.
func (b BlockNumber) StarknetID() starknet.BlockID {
	switch {
	case b.Pending:
		return starknet.PendingBlockID()
	case b.Earliest:
		return starknet.BlockIDFromNumber(0)
	case b.byNum:
		return starknet.BlockIDFromNumber(b.Number)
	default:
		return starknet.LatestBlockID()
	}
}

// Block is the eth_getBlockBy* response shape.
type Block struct {
	Number           hexutil.Uint64    `json:"number"`
	Hash             common.Hash       `json:"hash"`
	ParentHash       common.Hash       `json:"parentHash"`
	Nonce            types.BlockNonce  `json:"nonce"`
	Sha3Uncles       common.Hash       `json:"sha3Uncles"`
	LogsBloom        types.Bloom       `json:"logsBloom"`
	TransactionsRoot common.Hash       `json:"transactionsRoot"`
	StateRoot        common.Hash       `json:"stateRoot"`
	ReceiptsRoot     common.Hash       `json:"receiptsRoot"`
	Miner            common.Address    `json:"miner"`
	Difficulty       *hexutil.Big      `json:"difficulty"`
	TotalDifficulty  *hexutil.Big      `json:"totalDifficulty"`
	ExtraData        hexutil.Bytes     `json:"extraData"`
	Size             hexutil.Uint64    `json:"size"`
	GasLimit         hexutil.Uint64    `json:"gasLimit"`
	GasUsed          hexutil.Uint64    `json:"gasUsed"`
	Timestamp        hexutil.Uint64    `json:"timestamp"`
	MixHash          common.Hash       `json:"mixHash"`
	BaseFeePerGas    *hexutil.Big      `json:"baseFeePerGas"`
	Transactions     BlockTransactions `json:"transactions"`
	Uncles           []common.Hash     `json:"uncles"`
}

// BlockTransactions holds either full transaction objects or bare hashes,
// depending on the request's include-transactions flag.
type BlockTransactions struct {
	Full   []*Transaction
	Hashes []common.Hash
}

func (bt BlockTransactions) MarshalJSON() ([]byte, error) {
	if bt.Full != nil {
		return json.Marshal(bt.Full)
	}
	if bt.Hashes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(bt.Hashes)
}

func (bt *BlockTransactions) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "[]" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &bt.Full); err == nil {
		return nil
	}
	bt.Full = nil
	return json.Unmarshal(data, &bt.Hashes)
}

func (bt BlockTransactions) Count() int {
	if bt.Full != nil {
		return len(bt.Full)
	}
	return len(bt.Hashes)
}

// Transaction is the eth_getTransactionBy* response shape.
type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	BlockHash        *common.Hash    `json:"blockHash"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	Value            *hexutil.Big    `json:"value"`
	Input            hexutil.Bytes   `json:"input"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	Type             hexutil.Uint64  `json:"type"`
	V                *hexutil.Big    `json:"v"`
	R                *hexutil.Big    `json:"r"`
	S                *hexutil.Big    `json:"s"`
}

// Receipt is the eth_getTransactionReceipt response shape.
type Receipt struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64  `json:"transactionIndex"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	GasUsed           hexutil.Uint64  `json:"gasUsed"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Logs              []*types.Log    `json:"logs"`
	LogsBloom         types.Bloom     `json:"logsBloom"`
	Status            hexutil.Uint64  `json:"status"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Type              hexutil.Uint64  `json:"type"`
}

// CallRequest is the eth_call/eth_estimateGas transaction object. Both Data
// and Input are accepted for the payload; Input wins when both are set.
type CallRequest struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"`
}

func (c *CallRequest) Payload() []byte {
	if c.Input != nil {
		return *c.Input
	}
	if c.Data != nil {
		return *c.Data
	}
	return nil
}

// FilterQuery is the eth_getLogs request parameter. Address accepts a single
// address or an array of addresses on the wire.
type FilterQuery struct {
	BlockHash *common.Hash        `json:"blockHash"`
	FromBlock *BlockNumber        `json:"fromBlock"`
	ToBlock   *BlockNumber        `json:"toBlock"`
	Addresses addressOrList       `json:"address"`
	Topics    []topicAlternatives `json:"topics"`
}

type addressOrList []common.Address

func (a *addressOrList) UnmarshalJSON(data []byte) error {
	var single common.Address
	if err := json.Unmarshal(data, &single); err == nil {
		*a = addressOrList{single}
		return nil
	}
	return json.Unmarshal(data, (*[]common.Address)(a))
}

// topicAlternatives is one position of the topics filter: null (match any),
// a single hash, or a list of alternatives.
type topicAlternatives []common.Hash

func (t *topicAlternatives) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*t = nil
		return nil
	}
	var single common.Hash
	if err := json.Unmarshal(data, &single); err == nil {
		*t = topicAlternatives{single}
		return nil
	}
	return json.Unmarshal(data, (*[]common.Hash)(t))
}

// SyncStatus is the eth_syncing response when the upstream node is syncing.
type SyncStatus struct {
	StartingBlock hexutil.Uint64 `json:"startingBlock"`
	CurrentBlock  hexutil.Uint64 `json:"currentBlock"`
	HighestBlock  hexutil.Uint64 `json:"highestBlock"`
}

// FeeHistory is the eth_feeHistory response. Kakarot has no fee market, so
// the gateway reports the flat upstream gas price with zero rewards.
type FeeHistory struct {
	OldestBlock   hexutil.Uint64   `json:"oldestBlock"`
	BaseFeePerGas []*hexutil.Big   `json:"baseFeePerGas"`
	GasUsedRatio  []float64        `json:"gasUsedRatio"`
	Reward        [][]*hexutil.Big `json:"reward,omitempty"`
}
