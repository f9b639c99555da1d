package validator_test

import (
	"testing"

	"github.com/kkrt-labs/kakarot-rpc-go/felt"
	"github.com/kkrt-labs/kakarot-rpc-go/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorIsSingleton(t *testing.T) {
	assert.Same(t, validator.Validator(), validator.Validator())
}

func TestFeltFieldsValidateOnStringForm(t *testing.T) {
	type request struct {
		Contract felt.Felt `validate:"required"`
	}

	f, err := new(felt.Felt).SetString("0xabc")
	require.NoError(t, err)
	assert.NoError(t, validator.Validator().Struct(request{Contract: *f}))
}
