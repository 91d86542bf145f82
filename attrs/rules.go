package attrs

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/types"
)

// Baseline patterns attached to email- and phone-shaped fields
const (
	EmailPattern = `^[^\s@]+@[^\s@]+\.[^\s@]+$`
	PhonePattern = `^\+?[0-9][0-9 ().\-]{5,19}$`
)

// DefaultMaxLength is the floor for generated length bounds
const DefaultMaxLength = 255

var patterns = map[string]*regexp.Regexp{
	EmailPattern: regexp.MustCompile(EmailPattern),
	PhonePattern: regexp.MustCompile(PhonePattern),
}

// Rules generates the baseline validation rules for a write.
// Email applies when the field name mentions email or a text value contains "@";
// phone applies when a word of the name is phone, mobile, tel or telephone.
func Rules(name, value string, kind types.Kind, required bool) types.ValidationRules {
	lower := strings.ToLower(name)
	length := utf8.RuneCountInString(value)

	var rules types.ValidationRules
	switch {
	case strings.Contains(lower, "email") || (kind == types.KindText && strings.Contains(value, "@")):
		rules.Format = types.FormatEmail
		rules.Pattern = EmailPattern
	case isPhoneName(lower):
		rules.Format = types.FormatPhone
		rules.Pattern = PhonePattern
	}

	if length > 0 || required {
		rules.MinLength = 1
	}
	rules.MaxLength = max(DefaultMaxLength, 2*length)

	return rules
}

var phoneWords = map[string]bool{"phone": true, "mobile": true, "tel": true, "telephone": true}

// isPhoneName splits a lowercased field name on _, -, . and spaces and looks for a phone word
func isPhoneName(name string) bool {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for _, w := range words {
		if phoneWords[w] {
			return true
		}
	}
	return false
}

// Validate re-checks a stored attribute against its kind and rules
func Validate(a types.Attribute) error {
	if _, err := a.Typed(); err != nil {
		return errors.WithOp(err, "validate", a.TenantID, a.EntityID, a.Name)
	}

	length := utf8.RuneCountInString(a.Value)
	if length < a.Rules.MinLength {
		return errors.WithOp(
			errors.NewValidationError("value shorter than %d characters", a.Rules.MinLength),
			"validate", a.TenantID, a.EntityID, a.Name)
	}
	if a.Rules.MaxLength > 0 && length > a.Rules.MaxLength {
		return errors.WithOp(
			errors.NewValidationError("value longer than %d characters", a.Rules.MaxLength),
			"validate", a.TenantID, a.EntityID, a.Name)
	}

	if a.Rules.Pattern != "" && a.Value != "" {
		re, ok := patterns[a.Rules.Pattern]
		if !ok {
			var err error
			re, err = regexp.Compile(a.Rules.Pattern)
			if err != nil {
				return errors.WithOp(
					errors.NewValidationError("invalid rule pattern %q", a.Rules.Pattern),
					"validate", a.TenantID, a.EntityID, a.Name)
			}
		}
		if !re.MatchString(a.Value) {
			return errors.WithOp(
				errors.NewValidationError("value does not match %s format", formatOr(a.Rules.Format, "pattern")),
				"validate", a.TenantID, a.EntityID, a.Name)
		}
	}

	return nil
}

func formatOr(format, fallback string) string {
	if format == "" {
		return fallback
	}
	return format
}
