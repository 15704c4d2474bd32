package tenancy

import (
	"context"
	"fmt"
)

// CheckRequest is a one-shot authorization question, answerable without
// a live session. Resource is optional; when empty only action patterns
// are consulted.
type CheckRequest struct {
	PrincipalID string `json:"principal_id"`
	AccountID   string `json:"account_id"`
	Action      string `json:"action"`
	Resource    string `json:"resource,omitempty"`
}

// Check resolves the principal's membership in the account and explains
// the verdict its statements produce for the requested action. Used by
// admin tooling and the CLI; interactive callers should go through a
// Session, which caches decisions.
func Check(ctx context.Context, store OrgStore, req *CheckRequest) (*Decision, error) {
	if req == nil {
		return nil, fmt.Errorf("check request is required")
	}
	if req.PrincipalID == "" || req.AccountID == "" || req.Action == "" {
		return nil, fmt.Errorf("principal_id, account_id and action are required")
	}
	member, err := store.Membership(ctx, req.PrincipalID, req.AccountID)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("principal %s has no membership in account %s: %w", req.PrincipalID, req.AccountID, ErrUnauthorized)
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if req.Resource != "" {
		return Explain(member.Permissions, req.Action, req.Resource), nil
	}
	return Explain(member.Permissions, req.Action), nil
}
