package utils

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone parses a staff-entered phone number and returns it in E.164
// form. The default region applies when the number has no country prefix.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty phone number")
	}
	region := EnvOrDefault("PHONE_DEFAULT_REGION", "US")
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", err
	}
	// Possible-number check only: real-world front desks type test and
	// fictional ranges, and SMS delivery failure is already non-fatal.
	if !phonenumbers.IsPossibleNumber(num) {
		return "", errors.New("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
