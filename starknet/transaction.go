package starknet

import (
	"fmt"

	"github.com/kkrt-labs/kakarot-rpc-go/felt"
)

type TransactionType uint8

const (
	TxnInvalid TransactionType = iota
	TxnInvoke
	TxnDeclare
	TxnDeploy
	TxnDeployAccount
	TxnL1Handler
)

func (t TransactionType) String() string {
	switch t {
	case TxnInvoke:
		return "INVOKE"
	case TxnDeclare:
		return "DECLARE"
	case TxnDeploy:
		return "DEPLOY"
	case TxnDeployAccount:
		return "DEPLOY_ACCOUNT"
	case TxnL1Handler:
		return "L1_HANDLER"
	default:
		return "<unknown>"
	}
}

func (t TransactionType) MarshalText() ([]byte, error) {
	if t == TxnInvalid {
		return nil, fmt.Errorf("unknown transaction type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *TransactionType) UnmarshalText(data []byte) error {
	switch str := string(data); str {
	case "INVOKE", "INVOKE_FUNCTION":
		*t = TxnInvoke
	case "DECLARE":
		*t = TxnDeclare
	case "DEPLOY":
		*t = TxnDeploy
	case "DEPLOY_ACCOUNT":
		*t = TxnDeployAccount
	case "L1_HANDLER":
		*t = TxnL1Handler
	default:
		return fmt.Errorf("unknown transaction type %q", str)
	}
	return nil
}

type ExecutionStatus uint8

const (
	ExecutionSucceeded ExecutionStatus = iota + 1
	ExecutionReverted
)

func (es *ExecutionStatus) UnmarshalText(data []byte) error {
	switch str := string(data); str {
	case "SUCCEEDED":
		*es = ExecutionSucceeded
	case "REVERTED":
		*es = ExecutionReverted
	default:
		return fmt.Errorf("unknown execution status %q", str)
	}
	return nil
}

func (es ExecutionStatus) MarshalText() ([]byte, error) {
	switch es {
	case ExecutionSucceeded:
		return []byte("SUCCEEDED"), nil
	case ExecutionReverted:
		return []byte("REVERTED"), nil
	default:
		return nil, fmt.Errorf("unknown execution status %d", es)
	}
}

type FinalityStatus uint8

const (
	FinalityAcceptedL2 FinalityStatus = iota + 1
	FinalityAcceptedL1
	FinalityReceived
)

func (fs *FinalityStatus) UnmarshalText(data []byte) error {
	switch str := string(data); str {
	case "ACCEPTED_ON_L2":
		*fs = FinalityAcceptedL2
	case "ACCEPTED_ON_L1":
		*fs = FinalityAcceptedL1
	case "RECEIVED":
		*fs = FinalityReceived
	default:
		return fmt.Errorf("unknown finality status %q", str)
	}
	return nil
}

func (fs FinalityStatus) MarshalText() ([]byte, error) {
	switch fs {
	case FinalityAcceptedL2:
		return []byte("ACCEPTED_ON_L2"), nil
	case FinalityAcceptedL1:
		return []byte("ACCEPTED_ON_L1"), nil
	case FinalityReceived:
		return []byte("RECEIVED"), nil
	default:
		return nil, fmt.Errorf("unknown finality status %d", fs)
	}
}

// Transaction is the union of the StarkNet transaction variants. Fields not
// applicable to a variant are nil. The gateway only ever submits invokes;
// other variants appear on read paths.
type Transaction struct {
	Hash               *felt.Felt      `json:"transaction_hash,omitempty"`
	Type               TransactionType `json:"type"`
	Version            *felt.Felt      `json:"version,omitempty"`
	Nonce              *felt.Felt      `json:"nonce,omitempty"`
	MaxFee             *felt.Felt      `json:"max_fee,omitempty"`
	SenderAddress      *felt.Felt      `json:"sender_address,omitempty"`
	ContractAddress    *felt.Felt      `json:"contract_address,omitempty"`
	Signature          []*felt.Felt    `json:"signature,omitempty"`
	Calldata           []*felt.Felt    `json:"calldata,omitempty"`
	EntryPointSelector *felt.Felt      `json:"entry_point_selector,omitempty"`
	ClassHash          *felt.Felt      `json:"class_hash,omitempty"`
}

// BroadcastedInvoke is the starknet_addInvokeTransaction payload (invoke v1).
type BroadcastedInvoke struct {
	Type          TransactionType `json:"type"`
	Version       *felt.Felt      `json:"version"`
	MaxFee        *felt.Felt      `json:"max_fee"`
	Signature     []*felt.Felt    `json:"signature"`
	Nonce         *felt.Felt      `json:"nonce"`
	SenderAddress *felt.Felt      `json:"sender_address"`
	Calldata      []*felt.Felt    `json:"calldata"`
}

type AddInvokeResponse struct {
	TransactionHash *felt.Felt `json:"transaction_hash"`
}

type Event struct {
	FromAddress *felt.Felt   `json:"from_address"`
	Keys        []*felt.Felt `json:"keys"`
	Data        []*felt.Felt `json:"data"`
}

type TransactionReceipt struct {
	Type            TransactionType `json:"type"`
	TransactionHash *felt.Felt      `json:"transaction_hash"`
	ActualFee       *felt.Felt      `json:"actual_fee"`
	ExecutionStatus ExecutionStatus `json:"execution_status"`
	FinalityStatus  FinalityStatus  `json:"finality_status"`
	BlockHash       *felt.Felt      `json:"block_hash,omitempty"`
	BlockNumber     uint64          `json:"block_number"`
	Events          []*Event        `json:"events"`
	RevertReason    string          `json:"revert_reason,omitempty"`
}

type EventFilter struct {
	FromBlock         *BlockID       `json:"from_block,omitempty"`
	ToBlock           *BlockID       `json:"to_block,omitempty"`
	Address           *felt.Felt     `json:"address,omitempty"`
	Keys              [][]*felt.Felt `json:"keys,omitempty"`
	ChunkSize         uint64         `json:"chunk_size"`
	ContinuationToken string         `json:"continuation_token,omitempty"`
}

type EmittedEvent struct {
	Event
	BlockHash       *felt.Felt `json:"block_hash"`
	BlockNumber     uint64     `json:"block_number"`
	TransactionHash *felt.Felt `json:"transaction_hash"`
}

type EventsChunk struct {
	Events            []*EmittedEvent `json:"events"`
	ContinuationToken string          `json:"continuation_token,omitempty"`
}

type FunctionCall struct {
	ContractAddress    *felt.Felt   `json:"contract_address"`
	EntryPointSelector *felt.Felt   `json:"entry_point_selector"`
	Calldata           []*felt.Felt `json:"calldata"`
}

type SyncStatus struct {
	StartingBlockNum uint64 `json:"starting_block_num"`
	CurrentBlockNum  uint64 `json:"current_block_num"`
	HighestBlockNum  uint64 `json:"highest_block_num"`
}
