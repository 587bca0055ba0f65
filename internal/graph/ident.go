package graph

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// EntityLabel is carried by every node managed through this package.
const EntityLabel = "Entity"

const maxIdentifierLength = 128

var identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// ValidateIdentifier checks that name is safe to use as a label,
// relationship type or property key. kind is only used in the error text.
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidIdentifier, kind)
	}
	if utf8.RuneCountInString(name) > maxIdentifierLength {
		return fmt.Errorf("%w: %s %q exceeds %d characters", ErrInvalidIdentifier, kind, name, maxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q may only contain letters, digits and underscores and must not start with a digit",
			ErrInvalidIdentifier, kind, name)
	}
	return nil
}

// QuoteIdentifier wraps name in backticks, doubling any embedded backtick.
// Names read back from the store (schema introspection) go through here
// without validation, so the escaping must hold on its own.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func validateIdentifiers(kind string, names []string) error {
	for _, n := range names {
		if err := ValidateIdentifier(kind, n); err != nil {
			return err
		}
	}
	return nil
}
