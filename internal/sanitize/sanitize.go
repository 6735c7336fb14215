// Package sanitize filters profile input before it reaches a backend.
//
// Metadata merging is allow-list based: only the keys a profile legitimately
// owns survive, everything else is silently dropped so callers can never
// inject arbitrary keys into a stored user record.
package sanitize

import "strings"

const (
	maxDisplayNameLength = 128
	maxMetadataValueLen  = 1024
)

// metadataAllowList is the fixed set of profile metadata keys a caller may
// write through UpdateProfile.
var metadataAllowList = map[string]struct{}{
	"name":        {},
	"avatar":      {},
	"preferences": {},
	"theme":       {},
	"language":    {},
}

// Metadata returns a copy of input restricted to the allow-listed keys.
// Values are trimmed and length-capped; empty results are dropped. A nil or
// fully filtered input yields nil.
func Metadata(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]string, len(input))
	for key, value := range input {
		if _, ok := metadataAllowList[key]; !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if len(value) > maxMetadataValueLen {
			value = value[:maxMetadataValueLen]
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DisplayName normalizes a display name: trimmed, control characters
// stripped, length-capped.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if len(name) > maxDisplayNameLength {
		name = name[:maxDisplayNameLength]
	}
	return name
}

// MetadataKeyAllowed reports whether key survives [Metadata] filtering.
func MetadataKeyAllowed(key string) bool {
	_, ok := metadataAllowList[key]
	return ok
}
