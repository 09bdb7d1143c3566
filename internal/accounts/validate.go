package accounts

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/helixhealth/helix-portal/internal/shared"
)

const maxNameLength = 100

// namePattern accepts alphabetic names with interior spaces, hyphens,
// apostrophes, and periods. Accented letters are common in patient
// records, so the Latin-1 supplement ranges are included.
var namePattern = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ][A-Za-zÀ-ÖØ-öø-ÿ .'-]*$`)

// normalizeName trims and NFC-normalizes a person name so that
// composed and decomposed accent forms validate and store identically.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// validateName rejects empty, oversized, or non-alphabetic names.
func validateName(field, name string) error {
	if name == "" {
		return fmt.Errorf("accounts: %s required: %w", field, shared.ErrValidation)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("accounts: %s too long: %w", field, shared.ErrValidation)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("accounts: %s malformed: %w", field, shared.ErrValidation)
	}
	return nil
}

// validateEmail only requires presence; format enforcement is
// delegated to the store schema and the handler-level validator.
func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("accounts: email required: %w", shared.ErrValidation)
	}
	return nil
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("accounts: username required: %w", shared.ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("accounts: password required: %w", shared.ErrValidation)
	}
	return nil
}
