package kakarot

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
)

// starknetKeccak is keccak256 truncated to 250 bits, the hash StarkNet uses
// to derive entrypoint selectors from their names.
func starknetKeccak(data []byte) *felt.Felt {
	b := crypto.Keccak256(data)
	b[0] &= 0x03
	return new(felt.Felt).SetBytes(b)
}

// Selector hashes an entrypoint name the way StarkNet contracts expose it.
func Selector(name string) *felt.Felt {
	return starknetKeccak([]byte(name))
}

// Entrypoint selectors of the Kakarot core contract and the account
// contracts it deploys.
var (
	computeStarknetAddressSelector = Selector("compute_starknet_address")
	getEvmAddressSelector          = Selector("get_evm_address")
	executeAtAddressSelector       = Selector("execute_at_address")
	bytecodeSelector               = Selector("bytecode")
	getNonceSelector               = Selector("get_nonce")
	storageSelector                = Selector("storage")
	balanceOfSelector              = Selector("balanceOf")
)
