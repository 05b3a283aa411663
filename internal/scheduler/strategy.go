package scheduler

import "github.com/example/oncall-scheduler/internal/persistence"

// Strategy fixes the two points where rotation variants diverge: the order in
// which candidates are offered to the conflict checker, and the visibility
// rule deciding which events count as conflicts. The shared populate pipeline
// composes these; variants are never re-implemented wholesale.
type Strategy interface {
	// SelectCandidates returns the roster rotated to begin immediately after
	// lastScheduled, wrapping cyclically. An empty or unknown lastScheduled
	// yields the roster in priority order, so the first pick is roster[0].
	SelectCandidates(roster []string, lastScheduled string) []string

	// Visibility returns the conflict rule for this strategy.
	Visibility() Visibility

	// PersistsCursor reports whether assignments move the schedule's stored
	// rotation cursor. The default strategy recomputes order from roster
	// priority every call instead of persisting a cursor.
	PersistsCursor() bool
}

// StrategyFor resolves a schedule's strategy name. Unknown names fall back to
// the default strategy.
func StrategyFor(name string) Strategy {
	switch name {
	case persistence.StrategyRoundRobin:
		return roundRobinStrategy{}
	case persistence.StrategyMultiTeam:
		return multiTeamStrategy{}
	default:
		return defaultStrategy{}
	}
}

// rotateAfter returns roster reordered to start at the member following
// lastScheduled, wrapping cyclically. When lastScheduled is empty or absent
// from the roster, the roster is returned in its given order.
func rotateAfter(roster []string, lastScheduled string) []string {
	ordered := make([]string, 0, len(roster))
	last := -1
	for i, userID := range roster {
		if userID == lastScheduled {
			last = i
			break
		}
	}
	if last == -1 {
		return append(ordered, roster...)
	}
	for i := 1; i <= len(roster); i++ {
		ordered = append(ordered, roster[(last+i)%len(roster)])
	}
	return ordered
}

type defaultStrategy struct{}

func (defaultStrategy) SelectCandidates(roster []string, lastScheduled string) []string {
	return rotateAfter(roster, lastScheduled)
}

func (defaultStrategy) Visibility() Visibility { return TeamScopedVisibility }

func (defaultStrategy) PersistsCursor() bool { return false }

type roundRobinStrategy struct{}

func (roundRobinStrategy) SelectCandidates(roster []string, lastScheduled string) []string {
	return rotateAfter(roster, lastScheduled)
}

func (roundRobinStrategy) Visibility() Visibility { return TeamScopedVisibility }

func (roundRobinStrategy) PersistsCursor() bool { return true }

type multiTeamStrategy struct{}

func (multiTeamStrategy) SelectCandidates(roster []string, lastScheduled string) []string {
	return rotateAfter(roster, lastScheduled)
}

func (multiTeamStrategy) Visibility() Visibility { return GlobalVisibility }

func (multiTeamStrategy) PersistsCursor() bool { return true }
