// Package errs carries the structured error taxonomy shared by the wallet
// packages. Package-level sentinels stay the primary way to test for a
// specific failure; the Kind tells a caller how to react to it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller should handle it.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation covers malformed identifiers, network prefix mismatch and
	// amounts below the storage deposit. Never retried.
	KindValidation
	// KindInsufficientResource covers missing funds, tokens or outputs.
	KindInsufficientResource
	// KindSecretManager covers declined signatures and device errors.
	KindSecretManager
	// KindNetwork covers unreachable nodes and rejected submissions.
	KindNetwork
	// KindStorage covers adapter I/O, decryption and decoding failures.
	KindStorage
	// KindStaleInputState reports a local double-spend detected at commit.
	KindStaleInputState
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindValidation:           "validation",
	KindInsufficientResource: "insufficient resource",
	KindSecretManager:        "secret manager",
	KindNetwork:              "network",
	KindStorage:              "storage",
	KindStaleInputState:      "stale input state",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kind markers for errors.Is.
var (
	Validation           = &Error{Kind: KindValidation}
	InsufficientResource = &Error{Kind: KindInsufficientResource}
	SecretManager        = &Error{Kind: KindSecretManager}
	Network              = &Error{Kind: KindNetwork}
	Storage              = &Error{Kind: KindStorage}
	StaleInputState      = &Error{Kind: KindStaleInputState}
)

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds a classified error. A nil err yields nil so call sites can wrap
// unconditionally.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error prints "op: err". The kind is printed only when there is no op;
// the wrapped sentinels already name their package.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports a match against a kind marker (an *Error with no Op and no Err).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	if t.Op != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// KindOf returns the outermost kind found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the caller may retry the failed operation.
// Network errors may be retried as-is; stale input state needs a re-prepare.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindStaleInputState:
		return true
	default:
		return false
	}
}
