package device

import (
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/srg/blesend/internal/bledb"
)

// ManufacturerID extracts the company identifier from manufacturer-specific data.
// By convention it is the first two bytes, little-endian.
func ManufacturerID(data []byte) (uint16, bool) {
	if len(data) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(data[0:2]), true
}

// VendorName returns the company name encoded in manufacturer data, or "" when
// the data is too short or the company is unknown.
func VendorName(data []byte) string {
	id, ok := ManufacturerID(data)
	if !ok {
		return ""
	}
	return bledb.LookupVendor(id)
}

// LookupService returns the well-known service name for a UUID.
func LookupService(uuid string) string {
	return bledb.LookupService(uuid)
}

// LookupCharacteristic returns the well-known characteristic name for a UUID.
func LookupCharacteristic(uuid string) string {
	return bledb.LookupCharacteristic(uuid)
}

// NameFromManufacturerData recovers a device name some vendors embed in their
// manufacturer data when the advertisement has no local name.
// The 2-byte company identifier is skipped; the first printable ASCII run that
// passes IsValidDeviceName wins, truncated to 32 characters.
func NameFromManufacturerData(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	payload := data[2:]
	for i := 0; i < len(payload); i++ {
		if !isReadableASCII(payload[i]) {
			continue
		}
		j := i
		for j < len(payload) && j < i+maxDeviceNameLen && isReadableASCII(payload[j]) {
			j++
		}
		name := strings.TrimSpace(string(payload[i:j]))
		if IsValidDeviceName(name) {
			return name
		}
		i = j
	}
	return ""
}

const maxDeviceNameLen = 32

// IsValidDeviceName checks if a string looks like a human-readable device name
func IsValidDeviceName(name string) bool {
	if len(name) < 3 || len(name) > maxDeviceNameLen {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isReadableASCII(b byte) bool {
	return b >= 32 && b <= 126 && unicode.IsPrint(rune(b))
}
