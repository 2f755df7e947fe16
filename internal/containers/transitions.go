package containers

import (
	"github.com/freshroute/freshroute-backend/pkg/enums"
)

// containerTransitions is the full edge set of the container lifecycle.
// The happy path is linear; the only branches are the intake inspection
// (arrived -> rejected) and the overflow detour (sorted -> stored -> shelved).
var containerTransitions = map[enums.ContainerState][]enums.ContainerState{
	enums.ContainerStateArrived:  {enums.ContainerStateRejected, enums.ContainerStateCleaning},
	enums.ContainerStateCleaning: {enums.ContainerStateCleaned},
	enums.ContainerStateCleaned:  {enums.ContainerStateWeighing},
	enums.ContainerStateWeighing: {enums.ContainerStateWeighed},
	enums.ContainerStateWeighed:  {enums.ContainerStateSorting},
	enums.ContainerStateSorting:  {enums.ContainerStateSorted},
	enums.ContainerStateSorted:   {enums.ContainerStateStored, enums.ContainerStateShelved},
	enums.ContainerStateStored:   {enums.ContainerStateShelved},
	enums.ContainerStateShelved:  {enums.ContainerStatePicked},
	enums.ContainerStatePicked:   {enums.ContainerStatePackaged},
	enums.ContainerStatePackaged: {enums.ContainerStateDispatched},
}

// CanTransition reports whether the edge from -> to exists in the lifecycle.
func CanTransition(from, to enums.ContainerState) bool {
	for _, next := range containerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// areaForState maps each lifecycle state onto the physical area the
// container must occupy while in that state.
func areaForState(state enums.ContainerState) enums.LocationArea {
	switch state {
	case enums.ContainerStateArrived:
		return enums.LocationAreaIntake
	case enums.ContainerStateCleaning, enums.ContainerStateCleaned:
		return enums.LocationAreaCleaning
	case enums.ContainerStateWeighing, enums.ContainerStateWeighed:
		return enums.LocationAreaWeighing
	case enums.ContainerStateSorting, enums.ContainerStateSorted:
		return enums.LocationAreaSorting
	case enums.ContainerStateStored:
		return enums.LocationAreaWarehouse
	case enums.ContainerStateShelved:
		return enums.LocationAreaShelf
	default:
		// rejected, picked, packaged, dispatched: the container is on
		// its way out of the building.
		return enums.LocationAreaOut
	}
}
