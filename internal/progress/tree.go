package progress

import (
	"github.com/JakeFAU/studysync/internal/catalog"
	"github.com/JakeFAU/studysync/internal/store"
)

// MaxGoalIndex is the highest goal_index a sequence may hold. Larger indices
// are rejected by Toggle and skipped when transforming store records.
const MaxGoalIndex = 1<<12 - 1

// Tree maps identifier to level to per-goal completion flags indexed by
// goal_index. Missing positions read as false.
type Tree map[string]map[store.Level][]bool

// Clone returns a deep copy.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for id, levels := range t {
		cp := make(map[store.Level][]bool, len(levels))
		for level, goals := range levels {
			cp[level] = append([]bool(nil), goals...)
		}
		out[id] = cp
	}
	return out
}

// Goal reports the flag at (identifier, level, goalIndex); out of range is false.
func (t Tree) Goal(identifier string, level store.Level, goalIndex int) bool {
	goals := t[identifier][level]
	if goalIndex < 0 || goalIndex >= len(goals) {
		return false
	}
	return goals[goalIndex]
}

// Completed counts the completed goals under identifier across all levels.
func (t Tree) Completed(identifier string) int {
	n := 0
	for _, goals := range t[identifier] {
		for _, done := range goals {
			if done {
				n++
			}
		}
	}
	return n
}

// CompletedAt counts the completed goals for one level of identifier.
func (t Tree) CompletedAt(identifier string, level store.Level) int {
	n := 0
	for _, done := range t[identifier][level] {
		if done {
			n++
		}
	}
	return n
}

// set writes a flag, creating the identifier and level on demand. A new
// sequence starts at the declared length and grows to cover goalIndex.
func (t Tree) set(identifier string, level store.Level, goalIndex int, completed bool, declared int) {
	levels, ok := t[identifier]
	if !ok {
		levels = make(map[store.Level][]bool, len(store.Levels))
		t[identifier] = levels
	}
	levels[level] = extend(levels[level], max(capLength(declared), goalIndex+1))
	levels[level][goalIndex] = completed
}

// capLength bounds a declared count to the longest sequence allowed.
func capLength(n int) int {
	return min(n, MaxGoalIndex+1)
}

func extend(goals []bool, length int) []bool {
	if len(goals) >= length {
		return goals
	}
	out := make([]bool, length)
	copy(out, goals)
	return out
}

// Transform groups flat store records into a Tree. Each sequence is as long
// as the larger of the declared goal count and the highest goal_index + 1.
// Records with an empty identifier, unknown level or an index outside
// [0, MaxGoalIndex] are skipped.
func Transform(records []store.Record, cat *catalog.Catalog) Tree {
	tree, _ := transform(records, cat)
	return tree
}

// transform is Transform that also reports how many records were skipped.
func transform(records []store.Record, cat *catalog.Catalog) (Tree, int) {
	tree := make(Tree)
	skipped := 0
	for _, rec := range records {
		if rec.ItemIdentifier == "" || !rec.Level.Valid() || !validGoalIndex(rec.GoalIndex) {
			skipped++
			continue
		}
		declared := cat.GoalCount(rec.ItemIdentifier, rec.Level)
		tree.set(rec.ItemIdentifier, rec.Level, rec.GoalIndex, bool(rec.Completed), declared)
	}
	return tree, skipped
}

func validGoalIndex(i int) bool {
	return i >= 0 && i <= MaxGoalIndex
}
