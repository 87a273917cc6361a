package logging

import "strings"

// Redact masks a secret, keeping a short prefix and suffix for recognition.
// Bearer tokens keep their scheme.
func Redact(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "bearer ") {
		return "Bearer " + mask(strings.TrimSpace(trimmed[7:]))
	}
	return mask(trimmed)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
