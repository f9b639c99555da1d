package kakarot

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
)

// Invocation is a decoded Ethereum transaction packed into the calldata
// layout the Kakarot entrypoint expects, together with the fields the read
// paths need to echo back.
type Invocation struct {
	EthHash  common.Hash
	Sender   common.Address
	To       *common.Address // nil for contract creation
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
	Data     []byte

	Calldata  []*felt.Felt
	Signature []*felt.Felt
}

// DecodeForSubmission parses raw Ethereum transaction bytes (legacy RLP or a
// typed envelope), verifies the signature recovers a sender under chainID,
// and packs the payload for the Kakarot entrypoint. It never performs
// network calls: an invalid signature is rejected before anything reaches
// the StarkNet node.
func DecodeForSubmission(raw []byte, chainID *big.Int) (*Invocation, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		if errors.Is(err, types.ErrTxTypeNotSupported) {
			return nil, fmt.Errorf("%w: type %v", ErrUnsupportedTxType, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if tx.Type() > types.DynamicFeeTxType {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedTxType, tx.Type())
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	v, r, s := tx.RawSignatureValues()
	return &Invocation{
		EthHash:   tx.Hash(),
		Sender:    sender,
		To:        tx.To(),
		Value:     tx.Value(),
		GasLimit:  tx.Gas(),
		GasPrice:  tx.GasPrice(),
		Nonce:     tx.Nonce(),
		Data:      tx.Data(),
		Calldata:  packExecuteAtAddress(tx.To(), tx.Value(), tx.Gas(), tx.Data()),
		Signature: signatureToFelts(v, r, s),
	}, nil
}

// SubmitTransaction decodes a raw transaction, resolves the sender's
// StarkNet account and broadcasts an invoke through the provider. The
// returned hash is the Ethereum transaction hash; the underlying StarkNet
// hash is recorded in the handle cache for receipt lookups.
func (c *Client) SubmitTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	inv, err := DecodeForSubmission(raw, c.chainID)
	if err != nil {
		return common.Hash{}, err
	}

	snAddr, err := c.StarknetAddress(ctx, inv.Sender, starknet.LatestBlockID())
	if err != nil {
		return common.Hash{}, err
	}

	maxFee := new(big.Int).Mul(new(big.Int).SetUint64(inv.GasLimit), inv.GasPrice)
	resp, err := c.provider.AddInvokeTransaction(ctx, &starknet.BroadcastedInvoke{
		Type:          starknet.TxnInvoke,
		Version:       new(felt.Felt).SetUint64(1),
		MaxFee:        new(felt.Felt).SetBigInt(maxFee),
		Signature:     inv.Signature,
		Nonce:         new(felt.Felt).SetUint64(inv.Nonce),
		SenderAddress: snAddr,
		Calldata:      inv.Calldata,
	})
	if starknet.IsContractNotFound(err) {
		return common.Hash{}, fmt.Errorf("%w: no account deployed for %v", ErrUnknownAccount, inv.Sender)
	}
	if err != nil {
		return common.Hash{}, err
	}

	c.handles.Add(inv.EthHash, resp.TransactionHash)
	c.log.Infow("Submitted transaction",
		"ethHash", inv.EthHash, "starknetHash", resp.TransactionHash, "sender", inv.Sender)
	return inv.EthHash, nil
}

// packExecuteAtAddress lays out an EVM invocation for the core contract:
// [to_present, to, value_low, value_high, gas_limit, data_len, data...],
// with one byte per felt in the data segment. A zero to_present flag marks
// contract creation, in which case the to field is ignored by the contract.
func packExecuteAtAddress(to *common.Address, value *big.Int, gasLimit uint64, data []byte) []*felt.Felt {
	toPresent := uint64(0)
	toFelt := new(felt.Felt)
	if to != nil {
		toPresent = 1
		toFelt = AddressToFelt(*to)
	}
	valueLow, valueHigh := splitUint256(value)

	calldata := make([]*felt.Felt, 0, 6+len(data))
	calldata = append(calldata,
		new(felt.Felt).SetUint64(toPresent),
		toFelt,
		valueLow,
		valueHigh,
		new(felt.Felt).SetUint64(gasLimit),
		new(felt.Felt).SetUint64(uint64(len(data))),
	)
	return append(calldata, feltsFromBytes(data)...)
}

// UnpackInvocation inverts packExecuteAtAddress for read paths that rebuild
// an Ethereum transaction view from recorded calldata.
func UnpackInvocation(calldata []*felt.Felt) (to *common.Address, value *big.Int, gasLimit uint64, data []byte, ok bool) {
	const header = 6
	if len(calldata) < header {
		return nil, nil, 0, nil, false
	}
	if !calldata[0].IsZero() {
		addr, addrOK := calldata[1].EthAddress()
		if !addrOK {
			return nil, nil, 0, nil, false
		}
		to = &addr
	}
	value, err := uint256FromFelts(calldata[2:4])
	if err != nil {
		return nil, nil, 0, nil, false
	}
	gasLimit = calldata[4].Uint64()

	dataLen := calldata[5].Uint64()
	if uint64(len(calldata)-header) < dataLen {
		return nil, nil, 0, nil, false
	}
	data = make([]byte, dataLen)
	for i := range data {
		b := calldata[header+i].Bytes()
		data[i] = b[felt.Bytes-1]
	}
	return to, value, gasLimit, data, true
}

// signatureToFelts encodes (v, r, s) as [r_low, r_high, s_low, s_high, v]:
// r and s are 256-bit values and need the Uint256 split, v fits a felt.
func signatureToFelts(v, r, s *big.Int) []*felt.Felt {
	rLow, rHigh := splitUint256(r)
	sLow, sHigh := splitUint256(s)
	return []*felt.Felt{rLow, rHigh, sLow, sHigh, new(felt.Felt).SetBigInt(v)}
}

// SignatureFromFelts inverts signatureToFelts; it reports false on wrong
// arity.
func SignatureFromFelts(sig []*felt.Felt) (v, r, s *big.Int, ok bool) {
	const parts = 5
	if len(sig) != parts {
		return nil, nil, nil, false
	}
	var err error
	if r, err = uint256FromFelts(sig[0:2]); err != nil {
		return nil, nil, nil, false
	}
	if s, err = uint256FromFelts(sig[2:4]); err != nil {
		return nil, nil, nil, false
	}
	return sig[4].BigInt(new(big.Int)), r, s, true
}
