package password

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Rule codes reported in [Violation.Code].
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

// Policy describes password strength requirements.
//
// The zero value accepts any non-empty password; use [DefaultPolicy] for a
// sane baseline.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	MaxAgeDays       int
}

// DefaultPolicy returns the baseline policy: 8+ characters with upper, lower
// and digit classes required, 90-day maximum age.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   false,
		MaxAgeDays:       90,
	}
}

// Violation is a single unmet policy rule.
type Violation struct {
	Field   string
	Code    string
	Message string
}

// PolicyError carries the complete list of policy violations for a candidate
// password.
type PolicyError struct {
	Violations []Violation
}

func (e *PolicyError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "password policy violation"
	}
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}
	return "password policy violation: " + strings.Join(codes, ", ")
}

// Validate checks candidate against every configured rule. It returns nil
// when all rules pass, or a [*PolicyError] listing one [Violation] per unmet
// rule. Rules are never short-circuited.
func (p Policy) Validate(candidate string) error {
	var violations []Violation

	add := func(code, message string) {
		violations = append(violations, Violation{Field: "password", Code: code, Message: message})
	}

	if p.MinLength > 0 && len(candidate) < p.MinLength {
		add(RuleMinLength, fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		add(RuleUppercase, "password must contain an uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		add(RuleLowercase, "password must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		add(RuleDigit, "password must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		add(RuleSpecial, "password must contain a special character")
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

// MaxAge returns the configured maximum password age, or zero when aging is
// disabled.
func (p Policy) MaxAge() time.Duration {
	if p.MaxAgeDays <= 0 {
		return 0
	}
	return time.Duration(p.MaxAgeDays) * 24 * time.Hour
}
