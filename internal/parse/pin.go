package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	minPINLength = 4
	maxPINLength = 6
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	spaceRe  = regexp.MustCompile(`\s+`)

	// ErrEmptyPIN is returned for a blank PIN.
	ErrEmptyPIN = errors.New("pin is empty")
)

// PIN trims and validates a keypad credential code. Valid codes are 4 to 6 ASCII digits.
func PIN(raw string) (string, error) {
	pin := strings.TrimSpace(raw)
	if pin == "" {
		return "", ErrEmptyPIN
	}
	if len(pin) < minPINLength || len(pin) > maxPINLength || !digitsRe.MatchString(pin) {
		return "", fmt.Errorf("pin should be %d-%d digits, %q given", minPINLength, maxPINLength, pin)
	}
	return pin, nil
}

// PINName normalizes the display name attached to a loaded PIN.
func PINName(raw string) string {
	name := strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	if name == "" {
		return "User"
	}
	return name
}
