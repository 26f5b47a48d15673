package auth

import (
	"errors"
	"fmt"
	"strings"
)

var ErrWeakPassword = errors.New("password does not meet policy")

const (
	minPasswordLen   = 8
	maxPasswordBytes = 72
	specialChars     = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

// CheckPasswordPolicy returns nil or an error wrapping ErrWeakPassword that
// lists every failed rule.
func CheckPasswordPolicy(pw string) error {
	var failed []string
	if len([]rune(pw)) < minPasswordLen {
		failed = append(failed, fmt.Sprintf("at least %d characters", minPasswordLen))
	}
	if len(pw) > maxPasswordBytes {
		failed = append(failed, fmt.Sprintf("at most %d bytes", maxPasswordBytes))
	}

	// Letters and digits are ASCII only; accented letters and other scripts
	// count towards length but satisfy no class.
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	if !upper {
		failed = append(failed, "an uppercase letter")
	}
	if !lower {
		failed = append(failed, "a lowercase letter")
	}
	if !digit {
		failed = append(failed, "a digit")
	}
	if !special {
		failed = append(failed, "a special character")
	}

	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: requires %s", ErrWeakPassword, strings.Join(failed, ", "))
}
