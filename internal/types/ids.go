package types

import (
	"time"

	"github.com/google/uuid"
)

// NewEventID generates a UUIDv7 event identifier.
// Used when a batch submits events without their own id.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// NewDefinitionSetID generates a UUIDv7 definition set identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewDefinitionSetID() DefinitionSetID {
	return DefinitionSetID(uuid.Must(uuid.NewV7()).String())
}

// ParseDefinitionSetID validates and converts a string to DefinitionSetID.
func ParseDefinitionSetID(s string) (DefinitionSetID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return DefinitionSetID(s), nil
}

// DefinitionSetIDTime extracts the creation time embedded in a UUIDv7 set id.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func DefinitionSetIDTime(id DefinitionSetID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
