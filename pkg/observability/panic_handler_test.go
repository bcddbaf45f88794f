package observability

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "expiry scan")
		panic("nil subscription")
	}()

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "PANIC recovered", entry["msg"])
	assert.Equal(t, "nil subscription", entry["panic"])
	assert.Equal(t, "expiry scan", entry["context"])
	assert.NotEmpty(t, entry["stack"])
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	var buf bytes.Buffer

	func() {
		defer RecoverPanic(NewLogger(InfoLevel, &buf), "quiet")
	}()

	assert.Zero(t, buf.Len())
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var buf bytes.Buffer
	called := false

	func() {
		defer RecoverPanicWithCallback(NewLogger(InfoLevel, &buf), "worker", func() { called = true })
		panic("boom")
	}()
	assert.True(t, called)

	called = false
	func() {
		defer RecoverPanicWithCallback(NewLogger(InfoLevel, &buf), "worker", func() { called = true })
	}()
	assert.False(t, called)
}

func TestPanicError(t *testing.T) {
	assert.NoError(t, PanicError(nil))
	assert.EqualError(t, PanicError("boom"), "panic: boom")

	cause := errors.New("index out of range")
	err := PanicError(cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}
