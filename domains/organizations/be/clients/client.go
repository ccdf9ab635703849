package clients

import "fmt"

// Client is a managed OAuth client registration. Its lifecycle is owned
// entirely by the reconciler; administrators never create clients directly.
// OrganizationID is a back-reference to the owning organization, not an
// ownership relation in the directory.
type Client struct {
	ID             string
	ClientID       string
	Name           string
	OrganizationID string
	RedirectURIs   []string
}

// Violation describes one invalid field value.
type Violation struct {
	Field   string
	Message string
}

// Validate checks the field constraints of the client. An empty result means
// the values are valid.
func (c Client) Validate() []Violation {
	var violations []Violation
	if c.ClientID == "" {
		violations = append(violations, Violation{Field: "clientId", Message: "must not be blank"})
	}
	if len(c.RedirectURIs) == 0 {
		violations = append(violations, Violation{Field: "redirectUris", Message: "must not be empty"})
	}
	return violations
}

func (c Client) String() string {
	return fmt.Sprintf("Client{id=%q, clientId=%q, name=%q, organizationId=%q}",
		c.ID, c.ClientID, c.Name, c.OrganizationID)
}
