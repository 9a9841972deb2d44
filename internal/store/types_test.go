package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"beginner", LevelBeginner, false},
		{"intermediateGoals", LevelIntermediate, false},
		{" Advanced ", LevelAdvanced, false},
		{"expert", "", true},
		{"", "", true},
	}
	for _, tc := range testCases {
		got, err := ParseLevel(tc.input)
		if tc.wantErr {
			require.ErrorIs(t, err, ErrInvalidLevel, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.want, got)
	}
}

func TestRecordDecodesIntegerFlags(t *testing.T) {
	t.Parallel()

	payload := `[
		{"id": 7, "user_id": "u1", "item_identifier": "A", "level": "beginnerGoals", "goal_index": 2, "completed": 1},
		{"item_identifier": "A", "level": "advanced", "goal_index": 0, "completed": false},
		{"item_identifier": "B", "level": "intermediate", "goal_index": 1, "completed": true}
	]`
	var records []Record
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	require.Equal(t, []Record{
		{ItemIdentifier: "A", Level: LevelBeginner, GoalIndex: 2, Completed: true},
		{ItemIdentifier: "A", Level: LevelAdvanced, GoalIndex: 0, Completed: false},
		{ItemIdentifier: "B", Level: LevelIntermediate, GoalIndex: 1, Completed: true},
	}, records)
}

func TestRecordKeepsUnknownLevel(t *testing.T) {
	t.Parallel()

	var records []Record
	payload := `[
		{"item_identifier":"A","level":"expert","goal_index":0,"completed":1},
		{"item_identifier":"A","level":"advancedGoals","goal_index":1,"completed":0}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	require.Len(t, records, 2)
	require.Equal(t, Level("expert"), records[0].Level)
	require.False(t, records[0].Level.Valid())
	require.Equal(t, LevelAdvanced, records[1].Level)

	var lvl Level
	require.Error(t, json.Unmarshal([]byte(`7`), &lvl))
}

func TestUserIDAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var numeric User
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42, "email": "a@example.com"}`), &numeric))
	require.Equal(t, UserID("42"), numeric.ID)

	var text User
	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "email": "b@example.com"}`), &text))
	require.Equal(t, UserID("abc"), text.ID)
}

func TestUserCanUseAI(t *testing.T) {
	t.Parallel()

	require.True(t, User{FreeUsageCount: 29}.CanUseAI())
	require.False(t, User{FreeUsageCount: 30}.CanUseAI())
	require.True(t, User{FreeUsageCount: 300, IsPremium: true}.CanUseAI())
	require.False(t, User{FreeUsageCount: 5, UsageLimit: 5}.CanUseAI())
}

func TestUpdateKey(t *testing.T) {
	t.Parallel()

	u := Update{Identifier: "Go", Level: LevelAdvanced, GoalIndex: 3}
	require.Equal(t, "Go.advanced.3", u.Key())
}
