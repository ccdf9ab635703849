package service

import (
	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/directory"
)

// Attribute names under which organization fields live in the directory.
const (
	displayNameAttribute = "displayName"
	regionAttribute      = "region"
	aliasesAttribute     = "aliases"
)

func toRecord(o Organization) directory.OrganizationRecord {
	return directory.OrganizationRecord{
		ID:      o.ID,
		Name:    o.Name,
		Enabled: o.Enabled,
		Attributes: map[string][]string{
			displayNameAttribute: {o.DisplayName},
			regionAttribute:      {o.Region},
			aliasesAttribute:     append([]string(nil), o.Aliases...),
		},
	}
}

func fromRecord(rec directory.OrganizationRecord) Organization {
	return Organization{
		ID:          rec.ID,
		Name:        rec.Name,
		DisplayName: directory.Attribute(rec.Attributes, displayNameAttribute),
		Aliases:     append([]string(nil), rec.Attributes[aliasesAttribute]...),
		Region:      directory.Attribute(rec.Attributes, regionAttribute),
		Enabled:     rec.Enabled,
	}
}

func toSnapshot(o Organization) outbox.Snapshot {
	return outbox.Snapshot{
		ID:          o.ID,
		Name:        o.Name,
		DisplayName: o.DisplayName,
		Aliases:     append([]string(nil), o.Aliases...),
		Region:      o.Region,
		Enabled:     o.Enabled,
	}
}
