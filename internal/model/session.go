package model

import "time"

// Session statuses.
const (
	SessionOpen     = "OPEN"
	SessionCheckout = "CHECKOUT"
	SessionClosed   = "CLOSED"
)

// TableSession is the running bill of one physical table.  StateVersion
// starts at 1 and increases on every change to the cart, orders or
// payments of the session; it is the optimistic-concurrency fence for all
// payment operations.
//
// Fields:
//  ID           – primary key (UUID).
//  VenueID      – venue the table belongs to.
//  TableID      – table identifier within the venue.
//  Status       – OPEN, CHECKOUT or CLOSED.
//  PeopleCount  – number of guests declared on join.
//  OpenedAt     – creation timestamp.
//  ClosedAt     – closing timestamp (nullable).
//  LastActiveAt – last guest mutation, used by the inactivity sweep.
//  StateVersion – monotonic version of the bill.
type TableSession struct {
	ID           string     `json:"id"`             // table_sessions.id
	VenueID      string     `json:"venue_id"`       // table_sessions.venue_id
	TableID      string     `json:"table_id"`       // table_sessions.table_id
	Status       string     `json:"status"`         // table_sessions.status
	PeopleCount  int        `json:"people_count"`   // table_sessions.people_count
	OpenedAt     time.Time  `json:"opened_at"`      // table_sessions.opened_at
	ClosedAt     *time.Time `json:"closed_at"`      // table_sessions.closed_at (nullable)
	LastActiveAt time.Time  `json:"last_active_at"` // table_sessions.last_active_at
	StateVersion int64      `json:"state_version"`  // table_sessions.state_version
}

// Live reports whether guests may still act on the session.
func (s *TableSession) Live() bool { return s.Status != SessionClosed }
