package util

import "fmt"

// DefaultLogMaxLen is the default maximum length for truncated log output (1KB)
const DefaultLogMaxLen = 1024

// TruncateLog truncates long strings for verbose logging. Tool results
// can carry whole calendar listings or email bodies; logs only need a
// preview.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is a convenience wrapper for TruncateLog that accepts []byte
// and uses DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}
