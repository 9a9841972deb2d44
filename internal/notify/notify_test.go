package notify

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/studysync/internal/store"
)

func TestFromErrorTaxonomy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		op      Operation
		err     error
		kind    Kind
		actions []Action
	}{
		{"session expired on load", OpLoad, &store.StatusError{Code: http.StatusUnauthorized}, KindModal, []Action{ActionLogin}},
		{"session expired on save", OpSave, store.ErrUnauthenticated, KindModal, []Action{ActionLogin}},
		{"throttled", OpLoad, &store.StatusError{Code: http.StatusTooManyRequests}, KindModal, nil},
		{"offline on load", OpLoad, fmt.Errorf("%w: dial", store.ErrOffline), KindModal, []Action{ActionRetry}},
		{"offline on save", OpSave, store.ErrOffline, KindToast, nil},
		{"server error on load", OpLoad, &store.StatusError{Code: 500}, KindModal, []Action{ActionRetry}},
		{"server error on save", OpSave, store.ErrServer, KindToast, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n := FromError(tc.op, tc.err)
			require.Equal(t, tc.kind, n.Kind)
			require.Equal(t, tc.actions, n.Actions)
			require.Equal(t, SeverityError, n.Severity)
			require.Equal(t, tc.op, n.Op)
			require.NotEmpty(t, n.Title)
		})
	}
}

func TestGoalToggled(t *testing.T) {
	t.Parallel()

	require.Equal(t, SeveritySuccess, GoalToggled(true).Severity)
	require.Equal(t, SeverityInfo, GoalToggled(false).Severity)
	require.Equal(t, KindToast, GoalToggled(false).Kind)
}

func TestRecorderKeepsMostRecent(t *testing.T) {
	t.Parallel()

	r := NewRecorder(3)
	fixed := time.Unix(100, 0).UTC()
	r.now = func() time.Time { return fixed }
	for i := 0; i < 5; i++ {
		r.Notify(Notice{Title: fmt.Sprintf("n%d", i)})
	}

	all := r.Recent(0)
	require.Len(t, all, 3)
	require.Equal(t, "n2", all[0].Title)
	require.Equal(t, "n4", all[2].Title)
	require.Equal(t, fixed, all[0].At)

	last := r.Recent(1)
	require.Len(t, last, 1)
	require.Equal(t, "n4", last[0].Title)
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := NewRecorder(0), NewRecorder(0)
	Multi{a, nil, b, Nop{}}.Notify(Notice{Title: "hello"})
	require.Len(t, a.Recent(0), 1)
	require.Len(t, b.Recent(0), 1)
}

func TestLogNotifierLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	n := NewLogNotifier(zap.New(core))
	n.Notify(FromError(OpSave, store.ErrServer))
	n.Notify(GoalToggled(true))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zap.WarnLevel, entries[0].Level)
	require.Equal(t, zap.DebugLevel, entries[1].Level)
}

func TestDisplayBands(t *testing.T) {
	t.Parallel()

	require.Equal(t, "#4CAF50", Color(80))
	require.Equal(t, "#FF9800", Color(79))
	require.Equal(t, "#2196F3", Color(40))
	require.Equal(t, "#FFC107", Color(20))
	require.Equal(t, "#e0e0e0", Color(0))

	require.Equal(t, "🎉", Encourage(100).Icon)
	require.Equal(t, "🌳", Encourage(50).Icon)
	require.Equal(t, "💪", Encourage(9).Icon)

	require.Equal(t, "high-achievement", Badge(80))
	require.Equal(t, "good-progress", Badge(50))
	require.Empty(t, Badge(49))
}
