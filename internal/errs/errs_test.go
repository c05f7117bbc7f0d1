package errs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorUnwrap(t *testing.T) {
	inner := NewStorage("probe", assertErr("boom"))
	wrapped := NewValidation("bad signature", inner)

	require.Equal(t, inner, wrapped.Unwrap())
	require.Contains(t, wrapped.Error(), "bad signature")
	require.Contains(t, wrapped.Error(), "boom")
}

func TestTransientMissingData(t *testing.T) {
	err := NewTransient("pivot not present")
	require.Equal(t, "transient: pivot not present", err.Error())
}

func TestAsMatchesConcreteType(t *testing.T) {
	var err error = NewTransient("tip not present")
	var transient *TransientMissingData
	require.True(t, As(err, &transient))
	require.Equal(t, "tip not present", transient.Reason)

	var validation *ValidationError
	require.False(t, As(err, &validation))
}

func TestAbortPanics(t *testing.T) {
	require.Panics(t, func() {
		Abort("unreachable: %d", 42)
	})
}

func TestWrapPreservesIs(t *testing.T) {
	sentinel := assertErr("sentinel")
	wrapped := Wrap(sentinel, "context")
	require.True(t, Is(wrapped, sentinel))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
