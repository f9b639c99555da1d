package rpc

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
)

var (
	errLogNoAddress      = errors.New("event has no address key")
	errLogBadAddress     = errors.New("event address key exceeds 160 bits")
	errLogUnpairedTopics = errors.New("event topic keys are not in low/high pairs")
	errLogTooManyKeys    = errors.New("event carries more than 4 topics")
	errLogWideTopic      = errors.New("event topic half exceeds 128 bits")
	errLogWideData       = errors.New("event data felt exceeds one byte")
)

// maxTopics is Ethereum's cap on log topics (LOG0 through LOG4).
const maxTopics = 4

// translateLog converts one emitted event into an Ethereum log. The first
// key carries the emitting EVM address, the remaining keys hold the topics
// as (low, high) 128-bit halves since a full topic does not fit a felt, and
// each data felt carries one byte. Events that violate this encoding are
// reported as errors so the caller can drop them.
func translateLog(event *starknet.Event) (*types.Log, error) {
	if len(event.Keys) == 0 {
		return nil, errLogNoAddress
	}
	addr, ok := event.Keys[0].EthAddress()
	if !ok {
		return nil, errLogBadAddress
	}
	topicKeys := event.Keys[1:]
	if len(topicKeys)%2 != 0 {
		return nil, errLogUnpairedTopics
	}
	if len(topicKeys)/2 > maxTopics {
		return nil, errLogTooManyKeys
	}

	topics := make([]common.Hash, len(topicKeys)/2)
	for i := range topics {
		topic, topicOK := kakarot.FeltPairToHash(topicKeys[2*i], topicKeys[2*i+1])
		if !topicOK {
			return nil, errLogWideTopic
		}
		topics[i] = topic
	}

	data := make([]byte, len(event.Data))
	for i, d := range event.Data {
		if !d.IsUint64() || d.Uint64() > 0xff {
			return nil, errLogWideData
		}
		data[i] = byte(d.Uint64())
	}

	return &types.Log{
		Address: addr,
		Topics:  topics,
		Data:    data,
	}, nil
}

// translateLogs converts all of a receipt's events, dropping the malformed
// ones through onDrop. The receipt is always produced; dropping individual
// logs is the only sanctioned data loss in the translation layer.
func translateLogs(events []*starknet.Event, onDrop func(event *starknet.Event, err error)) []*types.Log {
	logs := make([]*types.Log, 0, len(events))
	for _, event := range events {
		log, err := translateLog(event)
		if err != nil {
			if onDrop != nil {
				onDrop(event, err)
			}
			continue
		}
		logs = append(logs, log)
	}
	return logs
}

// translateReceipt maps a StarkNet execution record onto the Ethereum
// receipt shape. Positional fields (transaction index, cumulative gas, log
// indices) come from the caller since they depend on the enclosing block.
// Translating the same receipt with the same position yields identical
// output.
func translateReceipt(snReceipt *starknet.TransactionReceipt, tx *Transaction, onDrop func(event *starknet.Event, err error)) *Receipt {
	receipt := &Receipt{
		TransactionHash:   tx.Hash,
		From:              tx.From,
		To:                tx.To,
		GasUsed:           gasFromFee(snReceipt.ActualFee, tx.GasPrice),
		Logs:              translateLogs(snReceipt.Events, onDrop),
		Status:            statusFromExecution(snReceipt.ExecutionStatus),
		EffectiveGasPrice: tx.GasPrice,
		Type:              tx.Type,
	}
	if tx.BlockHash != nil {
		receipt.BlockHash = *tx.BlockHash
	}
	if tx.BlockNumber != nil {
		receipt.BlockNumber = *tx.BlockNumber
	}
	if tx.TransactionIndex != nil {
		receipt.TransactionIndex = *tx.TransactionIndex
	}
	if tx.To == nil {
		created := crypto.CreateAddress(tx.From, uint64(tx.Nonce))
		receipt.ContractAddress = &created
	}

	for _, log := range receipt.Logs {
		log.TxHash = receipt.TransactionHash
		log.TxIndex = uint(receipt.TransactionIndex)
		log.BlockHash = receipt.BlockHash
		log.BlockNumber = uint64(receipt.BlockNumber)
		receipt.LogsBloom.Add(log.Address.Bytes())
		for _, topic := range log.Topics {
			receipt.LogsBloom.Add(topic.Bytes())
		}
	}
	return receipt
}

func statusFromExecution(status starknet.ExecutionStatus) hexutil.Uint64 {
	if status == starknet.ExecutionReverted {
		return hexutil.Uint64(types.ReceiptStatusFailed)
	}
	return hexutil.Uint64(types.ReceiptStatusSuccessful)
}

// gasFromFee recovers a gas amount from the paid fee at the given price.
// StarkNet receipts record fees in wei, not gas units.
func gasFromFee(actualFee *felt.Felt, gasPrice *hexutil.Big) hexutil.Uint64 {
	if actualFee == nil || gasPrice == nil {
		return 0
	}
	price := (*big.Int)(gasPrice)
	if price.Sign() == 0 {
		return 0
	}
	fee := actualFee.BigInt(new(big.Int))
	return hexutil.Uint64(fee.Div(fee, price).Uint64())
}

// encodeFromExecution rebuilds a read-only Ethereum transaction view from an
// on-chain invoke record. It never re-derives a signature: the recorded
// signature felts are unpacked as-is, and absent or foreign-shaped fields
// come out zeroed. Reports false for transactions whose calldata does not
// follow the execute layout (non-Kakarot traffic inside the block).
func encodeFromExecution(snTx *starknet.Transaction, sender common.Address, gasPrice *big.Int) (*Transaction, bool) {
	if snTx.Type != starknet.TxnInvoke {
		return nil, false
	}
	to, value, gasLimit, data, ok := kakarot.UnpackInvocation(snTx.Calldata)
	if !ok {
		return nil, false
	}

	tx := &Transaction{
		Hash:     kakarot.FeltToHash(snTx.Hash),
		From:     sender,
		To:       to,
		Gas:      hexutil.Uint64(gasLimit),
		GasPrice: (*hexutil.Big)(gasPrice),
		Value:    (*hexutil.Big)(value),
		Input:    data,
		V:        (*hexutil.Big)(new(big.Int)),
		R:        (*hexutil.Big)(new(big.Int)),
		S:        (*hexutil.Big)(new(big.Int)),
	}
	if snTx.Nonce != nil {
		tx.Nonce = hexutil.Uint64(snTx.Nonce.Uint64())
	}
	if v, r, s, sigOK := kakarot.SignatureFromFelts(snTx.Signature); sigOK {
		tx.V = (*hexutil.Big)(v)
		tx.R = (*hexutil.Big)(r)
		tx.S = (*hexutil.Big)(s)
	}
	return tx, true
}

// sealLogIndices assigns block-scoped log indices across receipts in
// execution order: a contiguous sequence starting at zero, spanning
// transaction boundaries.
func sealLogIndices(receipts []*Receipt) {
	index := uint(0)
	for _, receipt := range receipts {
		for _, log := range receipt.Logs {
			log.Index = index
			index++
		}
	}
}
