package persistence

import "time"

// VacationRole is the reserved role name whose events exclude a user from any
// assignment, on any team, independent of subscriptions.
const VacationRole = "vacation"

// Rotation strategy names accepted on a schedule.
const (
	StrategyDefault    = "default"
	StrategyRoundRobin = "round-robin"
	StrategyMultiTeam  = "multi-team"
)

// Segment is one sub-interval of a shift template, expressed relative to the
// start of a recurrence period.
type Segment struct {
	Offset   time.Duration
	Duration time.Duration
}

// Schedule describes a recurring on-call shift owned by a team. The template
// (Period plus Segments) is replaced wholesale on edit. LastScheduledUserID is
// the persisted rotation cursor and is the only field populate may mutate.
type Schedule struct {
	ID                  string
	TeamID              string
	RosterID            string
	Role                string
	Strategy            string
	HorizonDays         int
	AdvancedMode        bool
	Period              time.Duration
	Segments            []Segment
	LastScheduledUserID *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Event is one concrete calendar commitment. ScheduleID is nil for events
// created outside the engine; both kinds participate equally in conflict and
// idempotency checks. Events sharing a LinkID form one atomic multi-segment
// assignment.
type Event struct {
	ID         string
	TeamID     string
	ScheduleID *string
	UserID     string
	Role       string
	Start      time.Time
	End        time.Time
	LinkID     *string
}

// RosterMember records a user's membership in a roster. Only members with
// InRotation set participate in candidate selection.
type RosterMember struct {
	RosterID   string
	UserID     string
	InRotation bool
}

// ScheduleOrder assigns a rotation priority to a user for one schedule.
// Lower priority values rotate first; ties break on user identifier.
type ScheduleOrder struct {
	ScheduleID string
	UserID     string
	Priority   int
}

// Subscription declares that events of SourceRole on SourceTeamID are visible
// to TeamID's conflict checks for Role, as if they occurred on TeamID.
type Subscription struct {
	TeamID       string
	Role         string
	SourceTeamID string
	SourceRole   string
}
