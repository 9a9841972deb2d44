package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/studysync/internal/progress"
	"github.com/JakeFAU/studysync/internal/store"
)

func TestProgress_ToggleAndItem(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, &apiFakeStore{}, store.User{ID: "1"})
	rec := h.do(t, http.MethodPost, "/v1/progress/toggle",
		`{"identifier":"loops","level":"beginnerGoals","goal_index":1,"completed":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var item itemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, 1, item.Completed)
	require.Equal(t, 4, item.Total)
	require.Equal(t, 25, item.Percentage)
	require.Equal(t, "#FFC107", item.Color)
	require.Len(t, item.Levels, 3)
	require.Equal(t, 50, item.Levels[0].Percentage.Percentage)

	rec = h.do(t, http.MethodGet, "/v1/progress/loops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, 25, item.Percentage)
	require.Len(t, h.syncer.Pending(), 1)
}

func TestProgress_ToggleRejectsBadInput(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, &apiFakeStore{}, store.User{ID: "1"})
	cases := []string{
		`{invalid`,
		`{"identifier":"loops","level":"beginner"}`,
		`{"identifier":"loops","level":"expert","goal_index":0}`,
		`{"identifier":"loops","level":"beginner","goal_index":-2}`,
		`{"identifier":"","level":"beginner","goal_index":0}`,
		`{"identifier":"loops","level":"beginner","goal_index":4096}`,
		`{"identifier":"loops","level":"beginner","goal_index":4611686018427387904}`,
	}
	for _, body := range cases {
		rec := h.do(t, http.MethodPost, "/v1/progress/toggle", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Empty(t, h.syncer.Pending())

	rec := h.do(t, http.MethodPost, "/v1/progress/toggle",
		`{"identifier":"loops","level":"beginner","goal_index":0,"completed":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, h.syncer.Pending(), 1)
}

func TestProgress_Overview(t *testing.T) {
	t.Parallel()

	st := &apiFakeStore{records: []store.Record{
		{ItemIdentifier: "loops", Level: store.LevelAdvanced, GoalIndex: 1, Completed: true},
	}}
	h := newAPIHarness(t, st, store.User{ID: "1"})
	rec := h.do(t, http.MethodGet, "/v1/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got overviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "ready", got.State)
	require.Equal(t, []bool{false, true}, got.Tree["loops"][store.LevelAdvanced])
	require.Empty(t, got.Pending)
}

func TestProgress_RefreshMapsErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{&store.StatusError{Code: http.StatusUnauthorized}, http.StatusUnauthorized},
		{&store.StatusError{Code: http.StatusTooManyRequests}, http.StatusTooManyRequests},
		{fmt.Errorf("dial: %w", store.ErrOffline), http.StatusServiceUnavailable},
		{&store.StatusError{Code: http.StatusInternalServerError}, http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newAPIHarness(t, &apiFakeStore{fetchErr: tc.err}, store.User{ID: "1"})
		rec := h.do(t, http.MethodPost, "/v1/progress/refresh", "")
		require.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestProgress_Flush(t *testing.T) {
	t.Parallel()

	st := &apiFakeStore{}
	h := newAPIHarness(t, st, store.User{ID: "1"})
	require.NoError(t, h.syncer.Toggle("loops", store.LevelBeginner, 0, true))

	rec := h.do(t, http.MethodPost, "/v1/progress/flush", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, map[string]int{"submitted": 1, "remaining": 0}, got)
}

func TestProgress_FlushFailureKeepsPending(t *testing.T) {
	t.Parallel()

	st := &apiFakeStore{batchErr: &store.StatusError{Code: http.StatusUnauthorized}}
	h := newAPIHarness(t, st, store.User{ID: "1"})
	require.NoError(t, h.syncer.Toggle("loops", store.LevelBeginner, 0, true))

	rec := h.do(t, http.MethodPost, "/v1/progress/flush", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, h.syncer.Pending(), 1)
}

func TestProgress_Stats(t *testing.T) {
	t.Parallel()

	st := &apiFakeStore{stats: store.StatsSummary{TotalIdentifiers: 1, TotalGoals: 4}}
	h := newAPIHarness(t, st, store.User{ID: "1"})
	for i := 0; i < 3; i++ {
		require.NoError(t, h.syncer.Toggle("loops", store.LevelBeginner, i%2, true))
	}
	require.NoError(t, h.syncer.Toggle("loops", store.LevelAdvanced, 0, true))

	rec := h.do(t, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, progress.Statistics{
		TotalIdentifiers:    1,
		AchievedIdentifiers: 1,
		CompletedGoals:      3,
		TotalGoals:          4,
		OverallPercentage:   100,
	}, got.Statistics)
	require.Equal(t, "Perfect! Outstanding work!", got.Encouragement.Message)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusUnauthorized, statusFor(progress.ErrNoUser))
	require.Equal(t, http.StatusBadGateway, statusFor(store.ErrNetwork))
}
