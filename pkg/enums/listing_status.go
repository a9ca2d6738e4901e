package enums

import "fmt"

// ListingStatus gates whether an item can be requested.
type ListingStatus string

const (
	ListingStatusActive      ListingStatus = "active"
	ListingStatusUnavailable ListingStatus = "unavailable"
	ListingStatusArchived    ListingStatus = "archived"
)

var validListingStatuses = []ListingStatus{
	ListingStatusActive,
	ListingStatusUnavailable,
	ListingStatusArchived,
}

// String implements fmt.Stringer.
func (l ListingStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is known.
func (l ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseListingStatus converts raw input into a ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}
