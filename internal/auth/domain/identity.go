package domain

import (
	"fmt"
	"time"
)

type IdentityStatus string

const (
	IdentityActive   IdentityStatus = "active"
	IdentityInactive IdentityStatus = "inactive"
)

func ParseIdentityStatus(s string) (IdentityStatus, error) {
	switch st := IdentityStatus(s); st {
	case IdentityActive, IdentityInactive:
		return st, nil
	}
	return "", fmt.Errorf("domain: unknown identity status %q", s)
}

// Identity is the local view of an account's status, kept in sync by the
// account service.
type Identity struct {
	ID        string
	Status    IdentityStatus
	UpdatedAt time.Time
}
