package chain

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrReverted is returned when a mined transaction has a failed status.
	ErrReverted = errors.New("execution reverted")
	// ErrNoSigner is returned by writes on a client without a private key.
	ErrNoSigner = errors.New("no signer configured")
	ErrNoCode   = errors.New("no contract code at address")
)

// Operation names the user action a transaction belongs to.
type Operation string

const (
	OpBid     Operation = "bid"
	OpFill    Operation = "fill"
	OpSettle  Operation = "settle"
	OpDeposit Operation = "deposit"
	OpApprove Operation = "approve"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInsufficientFunds
	KindRejected
	KindReverted
	KindOddHex
	KindTimeout
)

const timeoutMessage = "The network did not respond in time. Please try again."

// TxError is a failed write mapped to the message shown to the user. The
// cause stays reachable through errors.Is and errors.As.
type TxError struct {
	Op      Operation
	Kind    Kind
	Message string
	Err     error
}

func (e *TxError) Error() string {
	return e.Message
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// Classify maps err to a *TxError for op. It returns nil for a nil error and
// passes an existing *TxError through unchanged.
func Classify(op Operation, err error) error {
	if err == nil {
		return nil
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr
	}

	kind := KindOf(err)
	return &TxError{
		Op:      op,
		Kind:    kind,
		Message: message(op, kind, err),
		Err:     err,
	}
}

// KindOf inspects the error chain and message of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrReverted) {
		return KindReverted
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return KindInsufficientFunds
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return KindRejected
	case strings.Contains(msg, "execution reverted"):
		return KindReverted
	case strings.Contains(msg, "odd length"), strings.Contains(msg, "odd-length"):
		return KindOddHex
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	}
	return KindUnknown
}

func message(op Operation, kind Kind, err error) string {
	if op == OpApprove {
		return "Failed to approve tokens for transfer"
	}
	if kind == KindTimeout {
		return timeoutMessage
	}

	switch op {
	case OpFill, OpSettle:
		switch kind {
		case KindInsufficientFunds:
			return "Insufficient funds to complete the transaction. Please check your wallet balance."
		case KindRejected:
			return "Transaction was rejected. Please try again."
		case KindReverted:
			if op == OpFill {
				return "Contract execution failed. This could be due to an invalid order ID or data format."
			}
			return "Contract execution failed. This could be due to an invalid order ID or the order has already been settled."
		case KindOddHex:
			if op == OpFill {
				return "Invalid hex data format. Please contact support with this error: " + err.Error()
			}
		}
		if op == OpFill {
			return orDefault(err, "Failed to fill order")
		}
		return orDefault(err, "Failed to settle order")

	case OpDeposit:
		switch kind {
		case KindInsufficientFunds:
			return "Insufficient funds for gas"
		case KindRejected:
			return "Transaction was rejected"
		case KindReverted:
			return "Contract execution failed - Check contract compatibility"
		}
		return "Failed to deposit tokens"
	}

	return orDefault(err, "Failed to place bid")
}

func orDefault(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
