package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// AddressRegex validates a colon-separated 48-bit device address
// ("AA:BB:CC:DD:EE:FF"), the §3 Address format.
var AddressRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// ValidateAddress validates a remote device address string.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if !AddressRegex.MatchString(address) {
		return fmt.Errorf("invalid address format (expected AA:BB:CC:DD:EE:FF)")
	}
	return nil
}

// ValidateMaxPeers validates a role's configured max_peers.
func ValidateMaxPeers(maxPeers int) error {
	if maxPeers < 1 {
		return fmt.Errorf("max peers must be at least 1")
	}
	if maxPeers > 1000 {
		return fmt.Errorf("max peers is too high (max 1000)")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
