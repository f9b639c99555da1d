// Package felt wraps the stark-curve base field element with the conversions
// the gateway needs between StarkNet scalars and Ethereum's fixed-size types.
package felt

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/ethereum/go-ethereum/common"
)

type Felt struct {
	val fp.Element
}

const (
	Limbs = fp.Limbs // number of 64 bit words needed to represent a field element
	Bits  = fp.Bits  // number of bits needed to represent a field element
	Bytes = fp.Bytes // number of bytes needed to represent a field element
)

var Zero = Felt{}

func New(element fp.Element) Felt {
	return Felt{val: element}
}

// Impl returns the underlying field element type.
func (z *Felt) Impl() *fp.Element {
	return &z.val
}

// UnmarshalJSON accepts numbers and strings as input.
// See Element.SetString for valid prefixes (0x, 0b, ...).
func (z *Felt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > fp.Bits*3 {
		return errors.New("felt: value too large")
	}

	// accept string-wrapped values, remove leading and trailing quotes if any
	if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	return z.set(s)
}

// MarshalJSON emits the 0x-prefixed hex form, which is what the StarkNet
// JSON-RPC wire format expects.
func (z *Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

func (z *Felt) set(s string) error {
	vv := new(big.Int)
	if _, ok := vv.SetString(s, 0); !ok {
		if _, ok := vv.SetString(s, 16); !ok {
			return fmt.Errorf("felt: can't parse %q into a big.Int", s)
		}
	}
	z.val.SetBigInt(vv)
	return nil
}

// SetBytes interprets e as the bytes of a big-endian unsigned integer,
// reduced modulo the field modulus.
func (z *Felt) SetBytes(e []byte) *Felt {
	z.val.SetBytes(e)
	return z
}

// SetString sets z from a decimal or 0x/0b-prefixed string.
func (z *Felt) SetString(number string) (*Felt, error) {
	_, err := z.val.SetString(number)
	return z, err
}

func (z *Felt) SetUint64(v uint64) *Felt {
	z.val.SetUint64(v)
	return z
}

func (z *Felt) SetBigInt(v *big.Int) *Felt {
	z.val.SetBigInt(v)
	return z
}

func (z *Felt) SetRandom() (*Felt, error) {
	_, err := z.val.SetRandom()
	return z, err
}

// String returns the 0x-prefixed hex representation without leading zeros.
func (z *Felt) String() string {
	return "0x" + z.val.Text(16)
}

func (z *Felt) Text(base int) string {
	return z.val.Text(base)
}

func (z *Felt) Equal(x *Felt) bool {
	return z.val.Equal(&x.val)
}

// Bytes returns the value as a 32-byte big-endian array.
func (z *Felt) Bytes() [32]byte {
	return z.val.Bytes()
}

func (z *Felt) BigInt(res *big.Int) *big.Int {
	return z.val.BigInt(res)
}

// Uint64 returns the low 64 bits; callers must check IsUint64 when the value
// may exceed the uint64 range.
func (z *Felt) Uint64() uint64 {
	b := new(big.Int)
	return z.val.BigInt(b).Uint64()
}

func (z *Felt) IsUint64() bool {
	return z.val.IsUint64()
}

func (z *Felt) IsZero() bool {
	return z.val.IsZero()
}

func (z *Felt) IsOne() bool {
	return z.val.IsOne()
}

func (z *Felt) Add(x, y *Felt) *Felt {
	z.val.Add(&x.val, &y.val)
	return z
}

func (z *Felt) Cmp(x *Felt) int {
	return z.val.Cmp(&x.val)
}

func (z *Felt) Clone() *Felt {
	clone := *z
	return &clone
}

// EthHash returns the value as an Ethereum 32-byte hash. Every felt fits:
// the field modulus is below 2^252.
func (z *Felt) EthHash() common.Hash {
	return common.Hash(z.val.Bytes())
}

// SetEthHash sets z from a 32-byte hash, reduced modulo the field modulus.
// Only use for hashes known to be felt-valued (StarkNet block and
// transaction hashes surfaced through the gateway satisfy this).
func (z *Felt) SetEthHash(h common.Hash) *Felt {
	z.val.SetBytes(h[:])
	return z
}

// EthAddress returns the low 20 bytes and reports whether the value fits an
// Ethereum address, i.e. is below 2^160.
func (z *Felt) EthAddress() (common.Address, bool) {
	b := z.val.Bytes()
	for _, hi := range b[:Bytes-common.AddressLength] {
		if hi != 0 {
			return common.Address{}, false
		}
	}
	return common.Address(b[Bytes-common.AddressLength:]), true
}

func (z *Felt) SetEthAddress(addr common.Address) *Felt {
	z.val.SetBytes(addr[:])
	return z
}
