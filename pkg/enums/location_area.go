package enums

import "fmt"

// LocationArea names the physical zone a container currently occupies.
type LocationArea string

const (
	LocationAreaIntake    LocationArea = "intake"
	LocationAreaCleaning  LocationArea = "cleaning"
	LocationAreaWeighing  LocationArea = "weighing"
	LocationAreaSorting   LocationArea = "sorting"
	LocationAreaWarehouse LocationArea = "warehouse"
	LocationAreaShelf     LocationArea = "shelf"
	LocationAreaOut       LocationArea = "out"
)

var validLocationAreas = []LocationArea{
	LocationAreaIntake,
	LocationAreaCleaning,
	LocationAreaWeighing,
	LocationAreaSorting,
	LocationAreaWarehouse,
	LocationAreaShelf,
	LocationAreaOut,
}

// String implements fmt.Stringer.
func (l LocationArea) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LocationArea.
func (l LocationArea) IsValid() bool {
	for _, candidate := range validLocationAreas {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLocationArea converts raw input into a LocationArea.
func ParseLocationArea(value string) (LocationArea, error) {
	for _, candidate := range validLocationAreas {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid location area %q", value)
}
