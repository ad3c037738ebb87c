// Package slug normalises names into lowercase ASCII identifiers used in
// MQTT topic paths and Home Assistant unique IDs.
package slug

import "strings"

// Slugify lowercases s and replaces every run of characters outside
// [a-z0-9] with a single underscore, trimming leading/trailing underscores.
func Slugify(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
