package validator

import (
	"errors"
	"strings"
)

// RedeemInput rejects obviously malformed redemption input before it
// reaches the engine. Normalization proper (trimming) happens at hashing.
func RedeemInput(code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return errors.New("code is required")
	}
	if len(trimmed) > 64 {
		return errors.New("code too long")
	}
	for _, c := range trimmed {
		if c < 0x20 || c > 0x7e {
			return errors.New("code contains invalid characters")
		}
	}
	return nil
}
