package checkout

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindStorage    Kind = "storage"
	KindDecode     Kind = "decode"
	KindOutOfRange Kind = "out_of_range"
	KindInvalid    Kind = "invalid"
)

// Error reports a failed store operation. Callers decide whether the failure
// blocks the user; the HTTP layer treats storage and decode errors as "no data".
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("checkout %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("checkout %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a checkout error, or "" for other errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsNonBlocking reports whether err only means persisted state was lost or unreadable.
func IsNonBlocking(err error) bool {
	k := KindOf(err)
	return k == KindStorage || k == KindDecode
}
