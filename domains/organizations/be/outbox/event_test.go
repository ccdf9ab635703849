package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testSnapshot(id, name string) Snapshot {
	return Snapshot{
		ID:          id,
		Name:        name,
		DisplayName: "Test " + name,
		Aliases:     []string{name},
		Region:      "eu",
		Enabled:     true,
	}
}

func TestEventConstructors(t *testing.T) {
	after := testSnapshot("org-1", "acme")
	before := testSnapshot("org-1", "acme")
	before.DisplayName = "Old Acme"

	created := Created("organizations", after)
	require.Equal(t, EventTypeCreated, created.Type)
	require.Nil(t, created.Before)
	require.NotNil(t, created.After)
	require.NoError(t, created.Validate())

	updated := Updated("organizations", before, after)
	require.Equal(t, EventTypeUpdated, updated.Type)
	require.NotNil(t, updated.Before)
	require.NotNil(t, updated.After)
	require.NoError(t, updated.Validate())

	deleted := Deleted("organizations", before)
	require.Equal(t, EventTypeDeleted, deleted.Type)
	require.NotNil(t, deleted.Before)
	require.Nil(t, deleted.After)
	require.NoError(t, deleted.Validate())

	require.NotEqual(t, created.ID, updated.ID)
	require.False(t, created.RecordedAt.IsZero())
}

func TestEventOrganizationID(t *testing.T) {
	created := Created("organizations", testSnapshot("org-1", "acme"))
	require.Equal(t, "org-1", created.OrganizationID())

	deleted := Deleted("organizations", testSnapshot("org-2", "globex"))
	require.Equal(t, "org-2", deleted.OrganizationID())

	require.Empty(t, Event{}.OrganizationID())
}

func TestEventValidate(t *testing.T) {
	snapshot := testSnapshot("org-1", "acme")

	tests := []struct {
		name    string
		event   Event
		wantErr string
	}{
		{
			name:    "missing id",
			event:   Event{Type: EventTypeCreated, After: &snapshot},
			wantErr: "event id is required",
		},
		{
			name:    "unknown type",
			event:   Event{ID: uuid.New(), Type: "RENAMED", After: &snapshot},
			wantErr: "unknown event type",
		},
		{
			name:    "created with before",
			event:   Event{ID: uuid.New(), Type: EventTypeCreated, Before: &snapshot, After: &snapshot},
			wantErr: "created event must carry only an after snapshot",
		},
		{
			name:    "updated missing before",
			event:   Event{ID: uuid.New(), Type: EventTypeUpdated, After: &snapshot},
			wantErr: "updated event must carry both snapshots",
		},
		{
			name:    "deleted with after",
			event:   Event{ID: uuid.New(), Type: EventTypeDeleted, Before: &snapshot, After: &snapshot},
			wantErr: "deleted event must carry only a before snapshot",
		},
		{
			name:    "missing organization id",
			event:   Event{ID: uuid.New(), Type: EventTypeCreated, After: &Snapshot{Name: "acme"}},
			wantErr: "missing the organization id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
