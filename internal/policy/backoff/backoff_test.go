package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialPolicyBounds(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	for attempt := 0; attempt < 8; attempt++ {
		want := 100 * time.Millisecond * time.Duration(1<<attempt)
		if want > time.Second {
			want = time.Second
		}
		for i := 0; i < 20; i++ {
			got := p.Backoff(attempt)
			require.GreaterOrEqual(t, got, want/2, "attempt %d", attempt)
			require.LessOrEqual(t, got, want, "attempt %d", attempt)
		}
	}
}

func TestExponentialPolicyAllow(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxAttempts: 3})
	require.True(t, p.Allow(1))
	require.True(t, p.Allow(2))
	require.False(t, p.Allow(3))
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	require.Equal(t, 5, p.maxAttempts)
	require.Equal(t, time.Second, p.baseDelay)
	require.Equal(t, 30*time.Second, p.maxDelay)
}
