package kakarot

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
)

// ContractID is a tagged variant over the two kinds of StarkNet contracts
// the gateway sees: accounts managed by Kakarot on behalf of an Ethereum
// address, and everything else.
type ContractID struct {
	ethAddr common.Address
	snAddr  *felt.Felt
	known   bool
}

func KnownAccount(addr common.Address, snAddr *felt.Felt) ContractID {
	return ContractID{ethAddr: addr, snAddr: snAddr, known: true}
}

func OpaqueContract(snAddr *felt.Felt) ContractID {
	return ContractID{snAddr: snAddr}
}

// EthAddress returns the Ethereum address and whether the contract is a
// Kakarot-managed account.
func (c ContractID) EthAddress() (common.Address, bool) {
	return c.ethAddr, c.known
}

func (c ContractID) StarknetAddress() *felt.Felt {
	return c.snAddr
}

// AddressToFelt embeds a 20-byte Ethereum address into a field element.
// Pure, total and injective: every address is below the field modulus.
func AddressToFelt(addr common.Address) *felt.Felt {
	return new(felt.Felt).SetEthAddress(addr)
}

// FeltToAddress inverts AddressToFelt. It reports false for felts outside
// the 160-bit range, which can never have been produced by AddressToFelt.
func FeltToAddress(f *felt.Felt) (common.Address, bool) {
	return f.EthAddress()
}

// SliceToAddress truncates a felt to its low 20 bytes. Lossy; only used as
// the last-resort surface for StarkNet-native contracts that expose no
// get_evm_address entrypoint.
func SliceToAddress(f *felt.Felt) common.Address {
	if f == nil {
		return common.Address{}
	}
	b := f.Bytes()
	return common.BytesToAddress(b[felt.Bytes-common.AddressLength:])
}

// HashToFelt reinterprets a 32-byte hash as a field element. Valid only for
// hashes that originated as felts (StarkNet block and transaction hashes).
func HashToFelt(h common.Hash) *felt.Felt {
	return new(felt.Felt).SetEthHash(h)
}

// FeltToHash widens a felt into a 32-byte hash. Total: the field modulus is
// below 2^252.
func FeltToHash(f *felt.Felt) common.Hash {
	return f.EthHash()
}

// HashToFeltPair splits a 32-byte hash into the (low, high) 128-bit felt
// pair of Cairo's Uint256 convention. Unlike HashToFelt it is lossless for
// arbitrary hashes: keccak-derived topics usually exceed the field modulus
// and would otherwise be reduced.
func HashToFeltPair(h common.Hash) (low, high *felt.Felt) {
	half := common.HashLength / 2
	return new(felt.Felt).SetBytes(h[half:]), new(felt.Felt).SetBytes(h[:half])
}

// FeltPairToHash inverts HashToFeltPair. It reports false when either half
// exceeds 128 bits, which a well-formed pair never does.
func FeltPairToHash(low, high *felt.Felt) (common.Hash, bool) {
	lowBytes, highBytes := low.Bytes(), high.Bytes()
	half := common.HashLength / 2
	for i, hi := range lowBytes[:felt.Bytes-half] {
		if hi != 0 || highBytes[i] != 0 {
			return common.Hash{}, false
		}
	}
	var h common.Hash
	copy(h[:half], highBytes[felt.Bytes-half:])
	copy(h[half:], lowBytes[felt.Bytes-half:])
	return h, true
}
