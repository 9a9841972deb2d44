package progress

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/JakeFAU/studysync/internal/notify"
	"github.com/JakeFAU/studysync/internal/store"
)

// achievedThreshold is the rounded percentage an identifier must exceed to
// count as achieved.
const achievedThreshold = 50

// Percentage is completion of one identifier or level.
type Percentage struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// LevelPercentage is completion of one level of an identifier.
type LevelPercentage struct {
	Level store.Level `json:"level"`
	Percentage
}

// Statistics summarizes progress across all identifiers.
type Statistics struct {
	TotalIdentifiers    int `json:"totalIdentifiers"`
	AchievedIdentifiers int `json:"achievedIdentifiers"`
	CompletedGoals      int `json:"completedGoals"`
	TotalGoals          int `json:"totalGoals"`
	OverallPercentage   int `json:"overallPercentage"`
}

func percent(completed, total int) Percentage {
	if total <= 0 {
		return Percentage{}
	}
	return Percentage{
		Completed:  completed,
		Total:      total,
		Percentage: int(math.Round(float64(completed) / float64(total) * 100)),
	}
}

// PercentageFor reports completion of identifier against its declared total.
// An unknown identifier or a declared total of 0 yields the zero Percentage.
func (s *Syncer) PercentageFor(identifier string) Percentage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return percent(s.tree.Completed(identifier), s.catalog.TotalGoals(identifier))
}

// LevelPercentages reports per-level completion for identifier in display
// order against the declared per-level counts.
func (s *Syncer) LevelPercentages(identifier string) []LevelPercentage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LevelPercentage, 0, len(store.Levels))
	for _, level := range store.Levels {
		out = append(out, LevelPercentage{
			Level:      level,
			Percentage: percent(s.tree.CompletedAt(identifier, level), s.catalog.GoalCount(identifier, level)),
		})
	}
	return out
}

// Statistics combines the store's aggregate totals, cached for the stats TTL,
// with a reduction over the local tree. When the totals cannot be fetched
// the last known values are used, or zeros.
func (s *Syncer) Statistics(ctx context.Context) Statistics {
	summary := s.summary(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Statistics{
		TotalIdentifiers: summary.TotalIdentifiers,
		TotalGoals:       summary.TotalGoals,
	}
	for id := range s.tree {
		total := s.catalog.TotalGoals(id)
		if total <= 0 {
			continue
		}
		completed := s.tree.Completed(id)
		stats.CompletedGoals += completed
		if percent(completed, total).Percentage > achievedThreshold {
			stats.AchievedIdentifiers++
		}
	}
	if stats.TotalIdentifiers > 0 {
		stats.OverallPercentage = int(math.Round(float64(stats.AchievedIdentifiers) / float64(stats.TotalIdentifiers) * 100))
	}
	return stats
}

func (s *Syncer) summary(ctx context.Context) store.StatsSummary {
	if cached, ok := s.statsCache.Get(s.cfg.Clock.Now()); ok {
		return cached
	}
	fetched, err := s.cfg.Store.FetchStats(ctx)
	if err != nil {
		s.logger.Warn("fetch statistics failed", zap.Error(err))
		if store.Retryable(err) {
			s.cfg.Notifier.Notify(notify.FromError(notify.OpStats, err))
		}
		stale, _ := s.statsCache.Stale()
		return stale
	}
	s.statsCache.Set(s.cfg.Clock.Now(), fetched)
	return fetched
}
