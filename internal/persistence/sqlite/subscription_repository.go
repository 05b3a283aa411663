package sqlite

import (
	"context"

	"github.com/example/oncall-scheduler/internal/persistence"
)

// SubscriptionRepository implements persistence.SubscriptionStore using SQLite.
type SubscriptionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSubscriptionRepository creates a new SQLite subscription repository.
func NewSubscriptionRepository(pool *ConnectionPool) *SubscriptionRepository {
	return &SubscriptionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSubscription declares a cross-team visibility edge.
func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub persistence.Subscription) error {
	if sub.TeamID == "" || sub.Role == "" || sub.SourceTeamID == "" || sub.SourceRole == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx,
		"INSERT INTO subscriptions (team_id, role, source_team_id, source_role) VALUES (?, ?, ?, ?)",
		sub.TeamID, sub.Role, sub.SourceTeamID, sub.SourceRole)
	return r.mapper.MapError(err)
}

// ListSubscriptions returns the edges declared for the owning team and role.
func (r *SubscriptionRepository) ListSubscriptions(ctx context.Context, teamID, role string) ([]persistence.Subscription, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT team_id, role, source_team_id, source_role FROM subscriptions WHERE team_id = ? AND role = ? ORDER BY source_team_id ASC, source_role ASC",
		teamID, role)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var subscriptions []persistence.Subscription
	for rows.Next() {
		var sub persistence.Subscription
		if err := rows.Scan(&sub.TeamID, &sub.Role, &sub.SourceTeamID, &sub.SourceRole); err != nil {
			return nil, r.mapper.MapError(err)
		}
		subscriptions = append(subscriptions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return subscriptions, nil
}
