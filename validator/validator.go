package validator

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kkrt-labs/kakarot-rpc-go/felt"
)

var (
	once sync.Once
	v    *validator.Validate
)

// Validator returns a singleton that validates JSON-RPC request parameters.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New()

		// Felts are validated against their string form.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if f, ok := field.Interface().(felt.Felt); ok {
				return f.String()
			}
			return nil
		}, felt.Felt{})
	})
	return v
}
