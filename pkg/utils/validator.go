package utils

import (
	"fmt"
	"regexp"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	requestIDRegex = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateRequestID validates a public 6-digit request identifier
func ValidateRequestID(requestID string) error {
	if !requestIDRegex.MatchString(requestID) {
		return fmt.Errorf("request id must be 6 digits with no leading zero: %s", requestID)
	}
	return nil
}

// SanitizeString removes control characters from user-supplied text
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
