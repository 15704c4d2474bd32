package tenancy

import (
	"context"
	"errors"
)

// ErrNotFound is returned (wrapped) by OrgStore implementations when a
// requested record does not exist.
var ErrNotFound = errors.New("record not found")

// OrgStore is the read-only contract the engine consumes for organization
// data. The engine never mutates the store.
//
// AccountsForPrincipal must return accounts in a stable listing order
// (membership insertion order); the session's bootstrap fallback and
// SwitchOrganization both rely on it.
type OrgStore interface {
	AccountsForPrincipal(ctx context.Context, principalID string) ([]*Account, error)
	OrganizationByID(ctx context.Context, id string) (*Organization, error)
	AccountByID(ctx context.Context, id string) (*Account, error)
	Membership(ctx context.Context, principalID, accountID string) (*AccountMember, error)
	DefaultAccount(ctx context.Context, principalID string) (*Account, error)
	OrganizationRoot(ctx context.Context, orgID string) (*OrganizationRoot, error)
	ChildOUs(ctx context.Context, parentID string) ([]*OrganizationalUnit, error)
	AccountsUnderOU(ctx context.Context, ouID string) ([]*Account, error)
}

// OrgWriter carries the administrative seeding operations used by
// Config.Apply and tooling. Engine code depends only on OrgStore.
type OrgWriter interface {
	PutOrganization(ctx context.Context, org *Organization) error
	PutRoot(ctx context.Context, root *OrganizationRoot) error
	PutOU(ctx context.Context, ou *OrganizationalUnit) error
	PutAccount(ctx context.Context, account *Account) error
	PutMember(ctx context.Context, member *AccountMember) error
}

// IsNotFound reports whether err denotes an absent record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
