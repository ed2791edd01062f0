package tenant

import (
	"fmt"
	"regexp"
)

const (
	// DefaultSchema is the schema used for tenant-agnostic data: the company
	// directory, public catalogs, and everything reachable before login.
	DefaultSchema = "public"

	// TemplateSchema holds the reference table definitions cloned into every
	// newly provisioned tenant schema.
	TemplateSchema = "template_schema"

	// maxIdentifierLen matches the PostgreSQL identifier limit.
	maxIdentifierLen = 63
)

// identifierPattern is the only accepted shape for a schema name. Schema names
// cannot be bound as SQL parameters, so this character class is the sole
// injection defense before interpolation into SET search_path.
var identifierPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ErrInvalidIdentifier is returned when a candidate schema name fails the
// character-class check.
type ErrInvalidIdentifier struct {
	Value string
}

func (e *ErrInvalidIdentifier) Error() string {
	return fmt.Sprintf("invalid tenant identifier %q: must match ^[a-z0-9_]{1,63}$", e.Value)
}

// Identifier is a validated schema name. The zero value is not usable; the
// only way to obtain a non-empty Identifier is through Parse or
// SchemaForCompany, so unvalidated input can never reach a schema-switch
// statement.
type Identifier struct {
	name string
}

// Parse validates a candidate schema name and wraps it. Rejected values fail
// closed: there is no fallback to a valid-looking default.
func Parse(raw string) (Identifier, error) {
	if raw == "" || len(raw) > maxIdentifierLen || !identifierPattern.MatchString(raw) {
		return Identifier{}, &ErrInvalidIdentifier{Value: raw}
	}
	return Identifier{name: raw}, nil
}

// MustParse is for constants and tests; it panics on invalid input.
func MustParse(raw string) Identifier {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// SchemaForCompany derives the canonical schema name for a company id.
// The name is generated once at company creation and immutable thereafter.
func SchemaForCompany(companyID int64) Identifier {
	return Identifier{name: fmt.Sprintf("tenant_%d", companyID)}
}

// Default returns the identifier for the default schema.
func Default() Identifier {
	return Identifier{name: DefaultSchema}
}

// String returns the validated schema name. Empty for the zero value.
func (id Identifier) String() string { return id.name }

// IsZero reports whether the identifier was never constructed.
func (id Identifier) IsZero() bool { return id.name == "" }

// IsDefault reports whether the identifier names the default schema.
func (id Identifier) IsDefault() bool { return id.name == DefaultSchema }
