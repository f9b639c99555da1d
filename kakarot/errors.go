package kakarot

import "errors"

var (
	// ErrMalformedTransaction is returned when raw transaction bytes fail to
	// decode as any Ethereum transaction envelope.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrInvalidSignature is returned when sender recovery fails. Submission
	// stops before anything reaches the StarkNet node.
	ErrInvalidSignature = errors.New("invalid transaction signature")

	// ErrUnsupportedTxType is returned for transaction envelope versions the
	// Kakarot entrypoint does not model (blob and set-code transactions).
	ErrUnsupportedTxType = errors.New("unsupported transaction type")

	// ErrUnknownAccount is returned when a submission's sender has no
	// account contract deployed to carry the invoke.
	ErrUnknownAccount = errors.New("unknown account")
)
