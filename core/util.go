package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// StudentCacheKey is the cache key holding every derived view of a student.
func StudentCacheKey(schoolID, studentID string) string {
	return "shule:" + schoolID + ":student:" + studentID
}
