package cache

import "strings"

// GenerateKey joins parts with ':'.
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}
