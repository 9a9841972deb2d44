package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Level is one of the three difficulty tiers goals are grouped under.
type Level string

// Supported levels, in display order.
const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Levels lists every level in display order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// ErrInvalidLevel is returned for level names outside the supported set.
var ErrInvalidLevel = errors.New("invalid level")

// ParseLevel normalizes a level name. The view historically tagged controls
// with "beginnerGoals" style names; those map onto the wire names.
func ParseLevel(raw string) (Level, error) {
	name := strings.TrimSuffix(strings.TrimSpace(raw), "Goals")
	switch Level(strings.ToLower(name)) {
	case LevelBeginner:
		return LevelBeginner, nil
	case LevelIntermediate:
		return LevelIntermediate, nil
	case LevelAdvanced:
		return LevelAdvanced, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, raw)
	}
}

// Valid reports whether l is a supported level.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	default:
		return false
	}
}

// UnmarshalJSON accepts both wire and legacy level names. An unknown name is
// kept verbatim so one odd row does not fail a whole snapshot; Valid reports
// false for it.
func (l *Level) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode level: %w", err)
	}
	parsed, err := ParseLevel(raw)
	if err != nil {
		*l = Level(raw)
		return nil
	}
	*l = parsed
	return nil
}

// Flag is a completion flag that decodes from a JSON bool or a 0/1 integer,
// since the store backs the column with an INTEGER.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("decode completed flag %s: %w", data, err)
	}
	*f = n != 0
	return nil
}

// Record is one flat progress row as served by GET /api/progress/{userId}.
type Record struct {
	ItemIdentifier string `json:"item_identifier"`
	Level          Level  `json:"level"`
	GoalIndex      int    `json:"goal_index"`
	Completed      Flag   `json:"completed"`
}

// Update is one queued mutation sent in a batch.
type Update struct {
	Identifier string `json:"identifier"`
	Level      Level  `json:"level"`
	GoalIndex  int    `json:"goal_index"`
	Completed  bool   `json:"completed"`
}

// Key returns the deduplication key "identifier.level.goal_index".
func (u Update) Key() string {
	return Key(u.Identifier, u.Level, u.GoalIndex)
}

// Key builds the deduplication key for a goal.
func Key(identifier string, level Level, goalIndex int) string {
	return identifier + "." + string(level) + "." + strconv.Itoa(goalIndex)
}

// BatchRequest is the body of POST /api/progress/batch-update.
type BatchRequest struct {
	UserID  string   `json:"userId"`
	Updates []Update `json:"updates"`
}

// StatsSummary carries the server-side aggregate counts.
type StatsSummary struct {
	TotalIdentifiers int `json:"totalIdentifiers"`
	TotalGoals       int `json:"totalGoals"`
}

// DefaultUsageLimit is the free AI generation allowance per user.
const DefaultUsageLimit = 30

// UserID is the store's user identifier. The identity endpoint serves it as
// either a JSON number or string; it is normalized to a string.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the authenticated account returned by GET /api/current-user.
type User struct {
	ID             UserID `json:"id"`
	Email          string `json:"email"`
	FreeUsageCount int    `json:"free_usage_count"`
	IsPremium      bool   `json:"is_premium"`
	UsageLimit     int    `json:"usage_limit"`
}

// Limit returns the effective usage limit.
func (u User) Limit() int {
	if u.UsageLimit <= 0 {
		return DefaultUsageLimit
	}
	return u.UsageLimit
}

// CanUseAI reports whether the user may still request AI generations.
func (u User) CanUseAI() bool {
	return u.IsPremium || u.FreeUsageCount < u.Limit()
}
