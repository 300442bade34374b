package device

import (
	"fmt"

	"github.com/srg/blesend/internal/bledb"
)

// NormalizeUUID brings a UUID to the form used for every lookup and comparison
// in this package; see bledb.NormalizeUUID.
func NormalizeUUID(uuid string) string {
	return bledb.NormalizeUUID(uuid)
}

func NormalizeUUIDs(uuids []string) []string {
	return bledb.NormalizeUUIDs(uuids)
}

// ShortenUUID cuts a normalized UUID to its first eight characters for display.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// ValidateUUID normalizes user supplied UUIDs, rejecting empty ones.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(uuid)
		if normalized == "" {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}
