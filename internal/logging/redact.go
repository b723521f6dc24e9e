package logging

import "go.uber.org/zap"

const redacted = "[REDACTED]"

// Redact masks a credential, keeping the last four characters so two tokens
// can still be told apart in logs.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return redacted
	}
	return redacted + "…" + secret[len(secret)-4:]
}

// Secret returns a zap field whose value is redacted.
func Secret(key, value string) zap.Field {
	return zap.String(key, Redact(value))
}
