package rpc

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/kakarot"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feltFromHex(t *testing.T, hex string) *felt.Felt {
	t.Helper()
	f, err := new(felt.Felt).SetString(hex)
	require.NoError(t, err)
	return f
}

func byteFelts(data []byte) []*felt.Felt {
	out := make([]*felt.Felt, len(data))
	for i, b := range data {
		out[i] = new(felt.Felt).SetUint64(uint64(b))
	}
	return out
}

// transferTopic is keccak("Transfer(address,address,uint256)"), which does
// not fit a single felt.
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// topicFelts packs topics into event keys, two felts per topic.
func topicFelts(topics ...common.Hash) []*felt.Felt {
	out := make([]*felt.Felt, 0, 2*len(topics))
	for _, topic := range topics {
		low, high := kakarot.HashToFeltPair(topic)
		out = append(out, low, high)
	}
	return out
}

func TestTranslateLog(t *testing.T) {
	addr := common.HexToAddress("0x00112233445566778899aabbccddeeff00112233")
	second := common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000c0ffee")
	event := &starknet.Event{
		Keys: append([]*felt.Felt{feltFromHex(t, addr.Hex())}, topicFelts(transferTopic, second)...),
		Data: byteFelts([]byte{0xde, 0xad}),
	}

	log, err := translateLog(event)
	require.NoError(t, err)
	assert.Equal(t, addr, log.Address)
	require.Len(t, log.Topics, 2)
	assert.Equal(t, transferTopic, log.Topics[0])
	assert.Equal(t, second, log.Topics[1])
	assert.Equal(t, []byte{0xde, 0xad}, log.Data)
}

func TestTranslateLogMalformed(t *testing.T) {
	validAddr := feltFromHex(t, "0xabc")
	half := new(felt.Felt).SetUint64(1)
	wideHalf := feltFromHex(t, "0x100000000000000000000000000000000") // 2^128

	tests := map[string]*starknet.Event{
		"no keys": {},
		"wide address key": {
			Keys: []*felt.Felt{feltFromHex(t, "0x10000000000000000000000000000000000000000")},
		},
		"unpaired topic keys": {
			Keys: []*felt.Felt{validAddr, half},
		},
		"too many topics": {
			Keys: append([]*felt.Felt{validAddr},
				topicFelts(transferTopic, transferTopic, transferTopic, transferTopic, transferTopic)...),
		},
		"wide topic half": {
			Keys: []*felt.Felt{validAddr, half, wideHalf},
		},
		"wide data felt": {
			Keys: []*felt.Felt{validAddr},
			Data: []*felt.Felt{new(felt.Felt).SetUint64(256)},
		},
	}
	for desc, event := range tests {
		t.Run(desc, func(t *testing.T) {
			_, err := translateLog(event)
			assert.Error(t, err)
		})
	}
}

func TestTranslateLogsDropsMalformed(t *testing.T) {
	valid := &starknet.Event{Keys: []*felt.Felt{feltFromHex(t, "0xabc")}}
	var dropped int
	logs := translateLogs([]*starknet.Event{valid, {}, valid}, func(*starknet.Event, error) {
		dropped++
	})
	assert.Len(t, logs, 2)
	assert.Equal(t, 1, dropped)
}

func newReceiptFixture(t *testing.T) (*starknet.TransactionReceipt, *Transaction) {
	t.Helper()
	blockHash := common.HexToHash("0x0123")
	blockNumber := hexutil.Uint64(7)
	index := hexutil.Uint64(0)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	snReceipt := &starknet.TransactionReceipt{
		Type:            starknet.TxnInvoke,
		TransactionHash: feltFromHex(t, "0x5511"),
		ActualFee:       new(felt.Felt).SetUint64(42_000),
		ExecutionStatus: starknet.ExecutionSucceeded,
		FinalityStatus:  starknet.FinalityAcceptedL2,
		Events: []*starknet.Event{
			{Keys: []*felt.Felt{feltFromHex(t, to.Hex())}, Data: byteFelts([]byte{1})},
		},
	}
	tx := &Transaction{
		Hash:             common.HexToHash("0x5511"),
		BlockHash:        &blockHash,
		BlockNumber:      &blockNumber,
		TransactionIndex: &index,
		From:             common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		To:               &to,
		GasPrice:         (*hexutil.Big)(big.NewInt(2)),
		Nonce:            3,
	}
	return snReceipt, tx
}

func TestTranslateReceipt(t *testing.T) {
	snReceipt, tx := newReceiptFixture(t)
	receipt := translateReceipt(snReceipt, tx, nil)

	assert.Equal(t, tx.Hash, receipt.TransactionHash)
	assert.Equal(t, *tx.BlockHash, receipt.BlockHash)
	assert.Equal(t, hexutil.Uint64(7), receipt.BlockNumber)
	assert.Equal(t, hexutil.Uint64(1), receipt.Status)
	// 42000 wei at 2 wei/gas
	assert.Equal(t, hexutil.Uint64(21_000), receipt.GasUsed)
	assert.Nil(t, receipt.ContractAddress)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, tx.Hash, receipt.Logs[0].TxHash)
	assert.True(t, receipt.LogsBloom.Test(receipt.Logs[0].Address.Bytes()))
}

func TestTranslateReceiptReverted(t *testing.T) {
	snReceipt, tx := newReceiptFixture(t)
	snReceipt.ExecutionStatus = starknet.ExecutionReverted
	receipt := translateReceipt(snReceipt, tx, nil)
	assert.Equal(t, hexutil.Uint64(0), receipt.Status)
}

func TestTranslateReceiptCreation(t *testing.T) {
	snReceipt, tx := newReceiptFixture(t)
	tx.To = nil
	receipt := translateReceipt(snReceipt, tx, nil)
	require.NotNil(t, receipt.ContractAddress)
	assert.NotEqual(t, common.Address{}, *receipt.ContractAddress)
}

func TestTranslateReceiptIdempotent(t *testing.T) {
	snReceipt, tx := newReceiptFixture(t)
	first := translateReceipt(snReceipt, tx, nil)
	second := translateReceipt(snReceipt, tx, nil)
	assert.Equal(t, first, second)
}

func TestSealLogIndices(t *testing.T) {
	log := func() *Receipt {
		snReceipt, tx := newReceiptFixture(t)
		return translateReceipt(snReceipt, tx, nil)
	}
	receipts := []*Receipt{log(), log(), log()}
	sealLogIndices(receipts)

	assert.Equal(t, uint(0), receipts[0].Logs[0].Index)
	assert.Equal(t, uint(1), receipts[1].Logs[0].Index)
	assert.Equal(t, uint(2), receipts[2].Logs[0].Index)
}

func TestBlockNumberUnmarshal(t *testing.T) {
	tests := map[string]starknet.BlockID{
		`"latest"`:    starknet.LatestBlockID(),
		`"finalized"`: starknet.LatestBlockID(),
		`"pending"`:   starknet.PendingBlockID(),
		`"earliest"`:  starknet.BlockIDFromNumber(0),
		`"0x10"`:      starknet.BlockIDFromNumber(16),
		`"42"`:        starknet.BlockIDFromNumber(42),
	}
	for input, want := range tests {
		var b BlockNumber
		require.NoError(t, json.Unmarshal([]byte(input), &b), input)
		assert.Equal(t, want, b.StarknetID(), input)
	}

	var b BlockNumber
	assert.Error(t, json.Unmarshal([]byte(`"nonsense"`), &b))
}

func TestBlockTransactionsMarshal(t *testing.T) {
	hashes := BlockTransactions{Hashes: []common.Hash{common.HexToHash("0x01")}}
	data, err := json.Marshal(hashes)
	require.NoError(t, err)
	assert.JSONEq(t, `["0x0000000000000000000000000000000000000000000000000000000000000001"]`, string(data))

	empty := BlockTransactions{}
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFilterQueryAddressShapes(t *testing.T) {
	var single FilterQuery
	require.NoError(t, json.Unmarshal([]byte(`{"address":"0x00112233445566778899aabbccddeeff00112233"}`), &single))
	require.Len(t, single.Addresses, 1)

	var list FilterQuery
	require.NoError(t, json.Unmarshal(
		[]byte(`{"address":["0x00112233445566778899aabbccddeeff00112233","0x00000000000000000000000000000000000000aa"]}`), &list))
	require.Len(t, list.Addresses, 2)
}

func TestFilterQueryTopicShapes(t *testing.T) {
	var q FilterQuery
	one := common.HexToHash("0x01").Hex()
	two := common.HexToHash("0x02").Hex()
	three := common.HexToHash("0x03").Hex()
	require.NoError(t, json.Unmarshal([]byte(`{"topics":[null,"`+one+`",["`+two+`","`+three+`"]]}`), &q))
	require.Len(t, q.Topics, 3)
	assert.Empty(t, q.Topics[0])
	assert.Len(t, q.Topics[1], 1)
	assert.Len(t, q.Topics[2], 2)
}

func TestEncodeFromExecution(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	calldata := executeCalldata(t, &to, big.NewInt(5), 21_000, []byte{0xca, 0xfe})

	snTx := &starknet.Transaction{
		Hash:          feltFromHex(t, "0x99"),
		Type:          starknet.TxnInvoke,
		Nonce:         new(felt.Felt).SetUint64(4),
		SenderAddress: feltFromHex(t, "0x77"),
		Calldata:      calldata,
		Signature: []*felt.Felt{
			new(felt.Felt).SetUint64(1), new(felt.Felt).SetUint64(0),
			new(felt.Felt).SetUint64(2), new(felt.Felt).SetUint64(0),
			new(felt.Felt).SetUint64(27),
		},
	}
	sender := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	tx, ok := encodeFromExecution(snTx, sender, big.NewInt(3))
	require.True(t, ok)
	assert.Equal(t, sender, tx.From)
	require.NotNil(t, tx.To)
	assert.Equal(t, to, *tx.To)
	assert.Equal(t, hexutil.Uint64(21_000), tx.Gas)
	assert.Equal(t, hexutil.Uint64(4), tx.Nonce)
	assert.Equal(t, hexutil.Bytes([]byte{0xca, 0xfe}), tx.Input)
	assert.Equal(t, "0x1b", tx.V.String())

	_, ok = encodeFromExecution(&starknet.Transaction{Type: starknet.TxnDeploy}, sender, big.NewInt(3))
	assert.False(t, ok)
}

// executeCalldata builds the execute entrypoint layout:
// [to_present, to, value_low, value_high, gas_limit, data_len, data...].
func executeCalldata(t *testing.T, to *common.Address, value *big.Int, gasLimit uint64, data []byte) []*felt.Felt {
	t.Helper()
	toPresent := uint64(0)
	toFelt := new(felt.Felt)
	if to != nil {
		toPresent = 1
		toFelt = feltFromHex(t, to.Hex())
	}
	low := new(felt.Felt).SetBigInt(new(big.Int).And(value, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))))
	high := new(felt.Felt).SetBigInt(new(big.Int).Rsh(value, 128))

	calldata := []*felt.Felt{
		new(felt.Felt).SetUint64(toPresent),
		toFelt,
		low,
		high,
		new(felt.Felt).SetUint64(gasLimit),
		new(felt.Felt).SetUint64(uint64(len(data))),
	}
	return append(calldata, byteFelts(data)...)
}
