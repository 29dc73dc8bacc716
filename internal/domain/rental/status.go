package rental

// Status is the lifecycle state of an agreement.
//
//	active ──► overdue ──► returned
//	  │   ◄──(extended)       ▲
//	  ├───────────────────────┘
//	  └──► cancelled
//
// overdue means "still out and past the expected return date". Lateness of a
// completed return is kept in Agreement.WasLate. returned and cancelled are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusOverdue   Status = "overdue"
	StatusReturned  Status = "returned"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusOverdue, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// IsOpen reports whether equipment is still out with the customer.
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusOverdue
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusReturned || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusActive:  {StatusOverdue, StatusReturned, StatusCancelled},
	StatusOverdue: {StatusActive, StatusReturned},
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
