package felt_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalJSON(t *testing.T) {
	var with felt.Felt
	require.NoError(t, with.UnmarshalJSON([]byte("0x4437ab")))

	var without felt.Felt
	require.NoError(t, without.UnmarshalJSON([]byte("4437171")))
	assert.True(t, with.Equal(&without))

	var quoted felt.Felt
	require.NoError(t, quoted.UnmarshalJSON([]byte(`"0x4437ab"`)))
	assert.True(t, with.Equal(&quoted))

	var bad felt.Felt
	assert.Error(t, bad.UnmarshalJSON([]byte(`"0xZZZ"`)))
}

func TestMarshalJSON(t *testing.T) {
	f := new(felt.Felt).SetUint64(0xcafebabe)
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `"0xcafebabe"`, string(data))
}

func TestString(t *testing.T) {
	f, err := new(felt.Felt).SetString("0x123abc")
	require.NoError(t, err)
	assert.Equal(t, "0x123abc", f.String())
	assert.Equal(t, "0x0", new(felt.Felt).String())
}

func TestEthAddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0xdead00000000000000000000000000000000beef")
	f := new(felt.Felt).SetEthAddress(addr)

	got, ok := f.EthAddress()
	require.True(t, ok)
	assert.Equal(t, addr, got)
}

func TestEthAddressTooLarge(t *testing.T) {
	f := new(felt.Felt).SetBytes([]byte{
		1, // 21st byte set
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	})
	_, ok := f.EthAddress()
	assert.False(t, ok)
}

func TestEthHash(t *testing.T) {
	f := new(felt.Felt).SetUint64(7)
	h := f.EthHash()
	assert.Equal(t, common.HexToHash("0x7"), h)

	back := new(felt.Felt).SetEthHash(h)
	assert.True(t, f.Equal(back))
}

func TestUint64(t *testing.T) {
	f := new(felt.Felt).SetUint64(42)
	assert.True(t, f.IsUint64())
	assert.Equal(t, uint64(42), f.Uint64())
}
