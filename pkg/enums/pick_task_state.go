package enums

import "fmt"

// PickTaskState tracks the lifecycle of a picker work order.
type PickTaskState string

const (
	PickTaskStatePending    PickTaskState = "pending"
	PickTaskStateInProgress PickTaskState = "in_progress"
	PickTaskStateCompleted  PickTaskState = "completed"
	PickTaskStateCanceled   PickTaskState = "canceled"
)

var validPickTaskStates = []PickTaskState{
	PickTaskStatePending,
	PickTaskStateInProgress,
	PickTaskStateCompleted,
	PickTaskStateCanceled,
}

// String implements fmt.Stringer.
func (p PickTaskState) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PickTaskState.
func (p PickTaskState) IsValid() bool {
	for _, candidate := range validPickTaskStates {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
func (p PickTaskState) IsTerminal() bool {
	return p == PickTaskStateCompleted || p == PickTaskStateCanceled
}

// ParsePickTaskState converts raw input into a PickTaskState.
func ParsePickTaskState(value string) (PickTaskState, error) {
	for _, candidate := range validPickTaskStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pick task state %q", value)
}
