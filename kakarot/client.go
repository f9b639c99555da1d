// Package kakarot implements the translation primitives between Ethereum's
// account model and the Kakarot core contract deployed on StarkNet.
package kakarot

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
)

const defaultHandleCacheSize = 4096

// Client resolves Ethereum-addressed state through view calls against the
// Kakarot core contract and the account contracts it deploys. It holds no
// mutable state besides the submitted-transaction handle cache; all reads go
// upstream.
type Client struct {
	provider     starknet.Provider
	coreContract *felt.Felt
	feeToken     *felt.Felt
	chainID      *big.Int
	handles      *HandleCache
	log          utils.SimpleLogger
}

func NewClient(provider starknet.Provider, coreContract, feeToken *felt.Felt, chainID *big.Int) *Client {
	return &Client{
		provider:     provider,
		coreContract: coreContract,
		feeToken:     feeToken,
		chainID:      chainID,
		handles:      NewHandleCache(defaultHandleCacheSize),
		log:          utils.NewNopZapLogger(),
	}
}

func (c *Client) WithLogger(log utils.SimpleLogger) *Client {
	c.log = log
	return c
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) Provider() starknet.Provider {
	return c.provider
}

func (c *Client) Handles() *HandleCache {
	return c.handles
}

// StarknetAddress resolves the StarkNet account contract for an Ethereum
// address via the core contract. The mapping is deterministic (a pure hash
// computed by the contract), so the result is stable across blocks.
func (c *Client) StarknetAddress(ctx context.Context, addr common.Address, id starknet.BlockID) (*felt.Felt, error) {
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    c.coreContract,
		EntryPointSelector: computeStarknetAddressSelector,
		Calldata:           []*felt.Felt{AddressToFelt(addr)},
	}, id)
	if err != nil {
		return nil, err
	}
	if len(ret) < 1 {
		return nil, fmt.Errorf("compute_starknet_address returned empty result")
	}
	return ret[0], nil
}

// EvmAddress asks a StarkNet contract for the Ethereum address it is managed
// under. Contracts without the entrypoint are surfaced through the lossy
// 20-byte slice of their StarkNet address, mirroring how the core contract
// labels non-Kakarot callers.
func (c *Client) EvmAddress(ctx context.Context, snAddr *felt.Felt, id starknet.BlockID) (ContractID, error) {
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    snAddr,
		EntryPointSelector: getEvmAddressSelector,
	}, id)
	if err != nil || len(ret) < 1 {
		return OpaqueContract(snAddr), nil
	}
	addr, ok := ret[0].EthAddress()
	if !ok {
		return OpaqueContract(snAddr), nil
	}
	return KnownAccount(addr, snAddr), nil
}

// SafeEvmAddress is EvmAddress collapsed to an address: opaque contracts get
// the sliced fallback rather than an error.
func (c *Client) SafeEvmAddress(ctx context.Context, snAddr *felt.Felt, id starknet.BlockID) common.Address {
	contract, _ := c.EvmAddress(ctx, snAddr, id)
	if addr, ok := contract.EthAddress(); ok {
		return addr
	}
	return SliceToAddress(snAddr)
}

// Balance reads the fee-token balance of the account mapped to addr.
// Addresses with no deployed account hold zero, matching Ethereum's
// semantics for unused addresses.
func (c *Client) Balance(ctx context.Context, addr common.Address, id starknet.BlockID) (*big.Int, error) {
	snAddr, err := c.StarknetAddress(ctx, addr, id)
	if err != nil {
		return nil, err
	}
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    c.feeToken,
		EntryPointSelector: balanceOfSelector,
		Calldata:           []*felt.Felt{snAddr},
	}, id)
	if starknet.IsContractNotFound(err) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return uint256FromFelts(ret)
}

// Nonce reads the protocol nonce of the mapped account; undeployed accounts
// report zero.
func (c *Client) Nonce(ctx context.Context, addr common.Address, id starknet.BlockID) (uint64, error) {
	snAddr, err := c.StarknetAddress(ctx, addr, id)
	if err != nil {
		return 0, err
	}
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    snAddr,
		EntryPointSelector: getNonceSelector,
	}, id)
	if starknet.IsContractNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(ret) < 1 {
		return 0, fmt.Errorf("get_nonce returned empty result")
	}
	return ret[0].Uint64(), nil
}

// Code reads the EVM bytecode stored on the mapped account contract. The
// contract returns a length-prefixed array with one byte per felt.
// Undeployed accounts report empty code.
func (c *Client) Code(ctx context.Context, addr common.Address, id starknet.BlockID) ([]byte, error) {
	snAddr, err := c.StarknetAddress(ctx, addr, id)
	if err != nil {
		return nil, err
	}
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    snAddr,
		EntryPointSelector: bytecodeSelector,
	}, id)
	if starknet.IsContractNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bytesFromFelts(ret)
}

// StorageAt reads one EVM storage slot of the mapped account. The slot key
// is passed as a Uint256 split into low/high felts.
func (c *Client) StorageAt(ctx context.Context, addr common.Address, key common.Hash, id starknet.BlockID) (common.Hash, error) {
	snAddr, err := c.StarknetAddress(ctx, addr, id)
	if err != nil {
		return common.Hash{}, err
	}
	low, high := splitUint256(new(big.Int).SetBytes(key[:]))
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    snAddr,
		EntryPointSelector: storageSelector,
		Calldata:           []*felt.Felt{low, high},
	}, id)
	if starknet.IsContractNotFound(err) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	value, err := uint256FromFelts(ret)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BigToHash(value), nil
}

// CallContract executes a read-only EVM call through the core contract's
// execute_at_address entrypoint and returns the EVM return data. A nil to
// marks a creation-shaped call.
func (c *Client) CallContract(ctx context.Context, to *common.Address, data []byte, id starknet.BlockID) ([]byte, error) {
	calldata := packExecuteAtAddress(to, new(big.Int), callGasLimit, data)
	ret, err := c.provider.Call(ctx, starknet.FunctionCall{
		ContractAddress:    c.coreContract,
		EntryPointSelector: executeAtAddressSelector,
		Calldata:           calldata,
	}, id)
	if err != nil {
		return nil, err
	}
	return bytesFromFelts(ret)
}

// GasPrice reports the L1 gas price of the latest StarkNet block in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	block, err := c.provider.BlockWithTxs(ctx, starknet.LatestBlockID())
	if err != nil {
		return nil, err
	}
	return block.GasPriceWei().BigInt(new(big.Int)), nil
}

// callGasLimit bounds view-call execution; eth_call carries no user gas
// budget through Kakarot, so the core contract is given a fixed ceiling.
const callGasLimit = uint64(1_000_000_000)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// splitUint256 splits a 256-bit integer into the (low, high) 128-bit felt
// pair of Cairo's Uint256 convention.
func splitUint256(v *big.Int) (*felt.Felt, *felt.Felt) {
	low := new(big.Int).And(v, maxUint128)
	high := new(big.Int).Rsh(v, 128)
	return new(felt.Felt).SetBigInt(low), new(felt.Felt).SetBigInt(high)
}

// uint256FromFelts folds a (low, high) felt pair back into a big integer.
func uint256FromFelts(ret []*felt.Felt) (*big.Int, error) {
	if len(ret) < 2 {
		return nil, fmt.Errorf("expected Uint256 (2 felts), got %d", len(ret))
	}
	low := ret[0].BigInt(new(big.Int))
	high := ret[1].BigInt(new(big.Int))
	return high.Lsh(high, 128).Or(high, low), nil
}

// bytesFromFelts decodes a length-prefixed felt array carrying one byte per
// element, the Cairo calling convention for byte strings.
func bytesFromFelts(ret []*felt.Felt) ([]byte, error) {
	if len(ret) == 0 {
		return nil, nil
	}
	length := ret[0].Uint64()
	if uint64(len(ret)-1) < length {
		return nil, fmt.Errorf("byte array shorter than its length prefix: %d < %d", len(ret)-1, length)
	}
	out := make([]byte, length)
	for i := range out {
		b := ret[i+1].Bytes()
		out[i] = b[felt.Bytes-1]
	}
	return out, nil
}

// feltsFromBytes is the inverse of bytesFromFelts, without the length prefix
// (callers place the length where their calldata layout expects it).
func feltsFromBytes(data []byte) []*felt.Felt {
	out := make([]*felt.Felt, len(data))
	for i, b := range data {
		out[i] = new(felt.Felt).SetUint64(uint64(b))
	}
	return out
}
