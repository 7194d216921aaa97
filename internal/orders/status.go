package orders

type Status string

const (
	StatusPending             Status = "PENDING"
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	StatusPaid                Status = "PAID"
	StatusCancelled           Status = "CANCELLED"
	StatusExpired             Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusPending:             {StatusPendingConfirmation, StatusPaid, StatusCancelled, StatusExpired},
	StatusPendingConfirmation: {StatusPaid, StatusCancelled, StatusExpired},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPendingConfirmation, StatusPaid, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

func (s PaymentStatus) String() string {
	return string(s)
}
