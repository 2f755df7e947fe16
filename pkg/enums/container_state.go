package enums

import "fmt"

// ContainerState tracks the operational lifecycle of a physical produce container.
type ContainerState string

const (
	ContainerStateArrived    ContainerState = "arrived"
	ContainerStateRejected   ContainerState = "rejected"
	ContainerStateCleaning   ContainerState = "cleaning"
	ContainerStateCleaned    ContainerState = "cleaned"
	ContainerStateWeighing   ContainerState = "weighing"
	ContainerStateWeighed    ContainerState = "weighed"
	ContainerStateSorting    ContainerState = "sorting"
	ContainerStateSorted     ContainerState = "sorted"
	ContainerStateStored     ContainerState = "stored"
	ContainerStateShelved    ContainerState = "shelved"
	ContainerStatePicked     ContainerState = "picked"
	ContainerStatePackaged   ContainerState = "packaged"
	ContainerStateDispatched ContainerState = "dispatched"
)

var validContainerStates = []ContainerState{
	ContainerStateArrived,
	ContainerStateRejected,
	ContainerStateCleaning,
	ContainerStateCleaned,
	ContainerStateWeighing,
	ContainerStateWeighed,
	ContainerStateSorting,
	ContainerStateSorted,
	ContainerStateStored,
	ContainerStateShelved,
	ContainerStatePicked,
	ContainerStatePackaged,
	ContainerStateDispatched,
}

// String implements fmt.Stringer.
func (c ContainerState) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ContainerState.
func (c ContainerState) IsValid() bool {
	for _, candidate := range validContainerStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
func (c ContainerState) IsTerminal() bool {
	return c == ContainerStateRejected || c == ContainerStateDispatched
}

// ParseContainerState converts raw input into a ContainerState.
func ParseContainerState(value string) (ContainerState, error) {
	for _, candidate := range validContainerStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid container state %q", value)
}
