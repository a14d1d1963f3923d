// Package certerr defines the failure kinds an issuance attempt can end in.
package certerr

import (
	"errors"
	"fmt"
)

// Kind classifies an issuance failure.
type Kind string

const (
	HashingUnavailable   Kind = "HASHING_UNAVAILABLE"
	StoreUnreachable     Kind = "STORE_UNREACHABLE"
	StoreRejected        Kind = "STORE_REJECTED"
	RenderingUnsupported Kind = "RENDERING_UNSUPPORTED"
	WalletUnavailable    Kind = "WALLET_UNAVAILABLE"
	SigningKeyMissing    Kind = "SIGNING_KEY_MISSING"
	TransactionRejected  Kind = "TRANSACTION_REJECTED"
	TransactionTimeout   Kind = "TRANSACTION_TIMEOUT"
	ChainUnreachable     Kind = "CHAIN_UNREACHABLE"
	InvalidRequest       Kind = "INVALID_REQUEST"
	Unknown              Kind = "UNKNOWN"
)

// Error is a typed pipeline failure. TxHash is set once a transaction has
// been submitted, so callers can reconcile it after a timeout.
type Error struct {
	Kind   Kind
	Op     string
	TxHash string
	Err    error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an Error with a formatted cause.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: StoreRejected}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// TxHashOf returns the submitted transaction hash carried by err, if any.
func TxHashOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.TxHash
	}
	return ""
}

// Message is the human readable text shown to a student for a failure kind.
func Message(kind Kind) string {
	switch kind {
	case HashingUnavailable:
		return "Certificate hashing is not available on this server."
	case StoreUnreachable:
		return "Certificate storage is unreachable. Please try again."
	case StoreRejected:
		return "Certificate storage rejected the upload."
	case RenderingUnsupported:
		return "Certificate image could not be rendered."
	case WalletUnavailable:
		return "Wallet access was refused. Approve the network switch and account access, then retry."
	case SigningKeyMissing:
		return "No signing key is configured for certificate issuance."
	case TransactionRejected:
		return "The network rejected the certificate transaction."
	case TransactionTimeout:
		return "The certificate transaction was sent but is not confirmed yet."
	case ChainUnreachable:
		return "The blockchain node is unreachable. Please try again."
	case InvalidRequest:
		return "The completion request is invalid."
	default:
		return "Certificate issuance failed."
	}
}
