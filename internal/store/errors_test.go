package store

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusErrorUnwrap(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, &StatusError{Code: http.StatusUnauthorized}, ErrUnauthenticated)
	require.ErrorIs(t, &StatusError{Code: http.StatusTooManyRequests}, ErrRateLimited)
	require.ErrorIs(t, &StatusError{Code: http.StatusBadGateway}, ErrServer)
	require.Equal(t, "status 500: boom", (&StatusError{Code: 500, Message: "boom"}).Error())
	require.Equal(t, "status 404 Not Found", (&StatusError{Code: 404}).Error())
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	require.False(t, Retryable(nil))
	require.False(t, Retryable(fmt.Errorf("fetch: %w", &StatusError{Code: http.StatusUnauthorized})))
	require.False(t, Retryable(&StatusError{Code: http.StatusTooManyRequests}))
	require.True(t, Retryable(&StatusError{Code: http.StatusServiceUnavailable}))
	require.True(t, Retryable(fmt.Errorf("%w: dial tcp", ErrOffline)))
	require.True(t, Retryable(ErrNetwork))
	require.False(t, Retryable(errors.New("decode failure")))
}
