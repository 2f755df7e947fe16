package enums

import "fmt"

// CrowdActivity names the counter a shelf crowd bump targets.
type CrowdActivity string

const (
	CrowdActivityPick  CrowdActivity = "pick"
	CrowdActivitySort  CrowdActivity = "sort"
	CrowdActivityAudit CrowdActivity = "audit"
)

var validCrowdActivities = []CrowdActivity{
	CrowdActivityPick,
	CrowdActivitySort,
	CrowdActivityAudit,
}

// String implements fmt.Stringer.
func (c CrowdActivity) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CrowdActivity.
func (c CrowdActivity) IsValid() bool {
	for _, candidate := range validCrowdActivities {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCrowdActivity converts raw input into a CrowdActivity.
func ParseCrowdActivity(value string) (CrowdActivity, error) {
	for _, candidate := range validCrowdActivities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid crowd activity %q", value)
}
