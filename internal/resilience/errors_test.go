package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"explicit", NewTransientError(errors.New("x")), true},
		{"wrapped explicit", fmt.Errorf("connect: %w", NewTransientError(errors.New("x"))), true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"network timeout", timeoutErr{}, true},
		{"starting up", &pgconn.PgError{Code: "57P03", Message: "the database system is starting up"}, true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, true},
		{"serialization", fmt.Errorf("save: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"message pattern", errors.New("write: broken pipe"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), tt.name)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "inner", te.Error())
}
