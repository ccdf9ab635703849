// Package directory talks to the external identity directory that is the
// system of record for organization and client registrations. Records carry
// free-form multi-valued attributes; the domain layer decides what lives in
// them.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound indicates the directory has no record for the given id.
var ErrNotFound = errors.New("directory: record not found")

// OrganizationRecord is the directory's representation of an organization.
type OrganizationRecord struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Enabled    bool                `json:"enabled"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// ClientRecord is the directory's representation of an OAuth client
// registration. ID is the directory-assigned identifier; ClientID is the
// OAuth client identifier.
type ClientRecord struct {
	ID           string              `json:"id,omitempty"`
	ClientID     string              `json:"clientId"`
	Name         string              `json:"name"`
	RedirectURIs []string            `json:"redirectUris"`
	Attributes   map[string][]string `json:"attributes,omitempty"`
}

// Organizations is the directory surface for organization records. Reads are
// assumed read-after-write consistent from a single client connection.
type Organizations interface {
	List(ctx context.Context) ([]OrganizationRecord, error)
	Get(ctx context.Context, id string) (OrganizationRecord, error)
	FindByName(ctx context.Context, name string) (OrganizationRecord, error)
	SearchByAttribute(ctx context.Context, attribute, value string) ([]OrganizationRecord, error)
	Create(ctx context.Context, rec OrganizationRecord) (OrganizationRecord, error)
	Update(ctx context.Context, rec OrganizationRecord) error
	Delete(ctx context.Context, id string) error
}

// Clients is the directory surface for client registrations.
type Clients interface {
	List(ctx context.Context) ([]ClientRecord, error)
	Get(ctx context.Context, id string) (ClientRecord, error)
	FindByClientID(ctx context.Context, clientID string) (ClientRecord, error)
	Create(ctx context.Context, rec ClientRecord) (ClientRecord, error)
	Update(ctx context.Context, rec ClientRecord) error
	Delete(ctx context.Context, id string) error
}

// Attribute returns the first value of the named attribute, or "".
func Attribute(attrs map[string][]string, name string) string {
	if values := attrs[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}
