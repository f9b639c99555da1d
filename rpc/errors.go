package rpc

import (
	"errors"

	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
)

var (
	ErrBlockNotFound        = &jsonrpc.Error{Code: 24, Message: "Block not found"}
	ErrTxnHashNotFound      = &jsonrpc.Error{Code: 29, Message: "Transaction hash not found"}
	ErrMalformedTransaction = &jsonrpc.Error{Code: 30, Message: "Malformed transaction"}
	ErrInvalidSignature     = &jsonrpc.Error{Code: 31, Message: "Invalid transaction signature"}
	ErrUnsupportedTxType    = &jsonrpc.Error{Code: 32, Message: "Unsupported transaction type"}
	ErrUnknownAccount       = &jsonrpc.Error{Code: 33, Message: "Unknown account"}
	ErrUpstreamUnavailable  = &jsonrpc.Error{Code: 34, Message: "Starknet node unavailable"}
	ErrUpstreamRejected     = &jsonrpc.Error{Code: 35, Message: "Execution reverted"}
	ErrInternal             = &jsonrpc.Error{Code: jsonrpc.InternalError, Message: "Internal error"}
)

// upstreamErr maps a starknet client failure onto the gateway's error
// taxonomy. Transport exhaustion becomes ErrUpstreamUnavailable, a node-side
// rejection becomes ErrUpstreamRejected with the node's message attached.
func upstreamErr(err error) *jsonrpc.Error {
	switch {
	case err == nil:
		return nil
	case starknet.IsBlockNotFound(err):
		return ErrBlockNotFound
	case starknet.IsTxnHashNotFound(err):
		return ErrTxnHashNotFound
	}

	var rpcErr *starknet.Error
	if errors.As(err, &rpcErr) {
		return ErrUpstreamRejected.CloneWithData(rpcErr.Message)
	}
	return ErrUpstreamUnavailable.CloneWithData(err.Error())
}
