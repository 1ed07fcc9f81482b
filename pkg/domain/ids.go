package domain

import (
	"strings"

	dErrors "policardmed/pkg/domain-errors"
)

// MemberID is the opaque identifier a member store assigns on insert. The
// in-memory and Postgres stores use UUIDs, the Mongo store uses ObjectID hex.
type MemberID string

// MaxMemberIDLength bounds identifiers accepted at trust boundaries.
const MaxMemberIDLength = 64

func (id MemberID) String() string {
	return string(id)
}

func (id MemberID) IsNil() bool {
	return id == ""
}

// ParseMemberID validates an identifier taken from a URL or token subject.
func ParseMemberID(raw string) (MemberID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "member id is required")
	}
	if len(raw) > MaxMemberIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "member id is too long")
	}
	return MemberID(raw), nil
}
