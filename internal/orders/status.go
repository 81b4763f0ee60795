package orders

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusCancelled  Status = "Cancelled"
)

// Admin can move an order freely between the three working states.
// Cancelled is terminal: nothing transitions out of it.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
	StatusFailed:     {StatusProcessing: true, StatusCompleted: true, StatusFailed: true},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ValidUpdate reports whether s is a status an admin may set directly.
func ValidUpdate(s Status) bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
