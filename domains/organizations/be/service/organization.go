package service

import (
	"fmt"
	"regexp"
	"strings"
)

// NamePattern constrains organization names and aliases: lowercase
// alphanumerics and dashes, 2-64 characters, no leading or trailing dash.
const NamePattern = `^[a-z0-9][a-z0-9-]{0,62}[a-z0-9]$`

var nameRegexp = regexp.MustCompile(NamePattern)

// Organization is the aggregate for one tenant organization. The directory
// assigns ID on creation; Name is immutable afterwards because it keys the
// broker tenant. Each alias drives one managed client registration.
type Organization struct {
	ID          string
	Name        string
	DisplayName string
	Aliases     []string
	Region      string
	Enabled     bool
}

// Violation describes one invalid field value.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Validate checks the field constraints of the organization. An empty result
// means the values are valid. Uniqueness of name and aliases is checked
// against the directory by the service, not here.
func (o Organization) Validate() []Violation {
	var violations []Violation

	if o.Name == "" {
		violations = append(violations, Violation{Field: "name", Message: "must not be blank"})
	} else if !nameRegexp.MatchString(o.Name) {
		violations = append(violations, Violation{Field: "name", Message: fmt.Sprintf("must match %s", NamePattern)})
	}

	if strings.TrimSpace(o.DisplayName) == "" {
		violations = append(violations, Violation{Field: "displayName", Message: "must not be blank"})
	}

	if len(o.Aliases) == 0 {
		violations = append(violations, Violation{Field: "aliases", Message: "must not be empty"})
	}
	for _, alias := range o.Aliases {
		if !nameRegexp.MatchString(alias) {
			violations = append(violations, Violation{Field: "aliases", Message: fmt.Sprintf("alias %q must match %s", alias, NamePattern)})
		}
	}

	if strings.TrimSpace(o.Region) == "" {
		violations = append(violations, Violation{Field: "region", Message: "must not be blank"})
	}

	return violations
}

// HasAlias reports whether alias is one of the organization's aliases.
func (o Organization) HasAlias(alias string) bool {
	for _, a := range o.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

func (o Organization) String() string {
	return fmt.Sprintf("Organization{id=%q, name=%q, displayName=%q, aliases=%v, region=%q, enabled=%t}",
		o.ID, o.Name, o.DisplayName, o.Aliases, o.Region, o.Enabled)
}
