package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/prashantrr143/bhoomi-tenancy/logger"
)

// ============================================================================
// TENANT SESSION
// ============================================================================

// SessionState is the lifecycle state of a Session.
type SessionState string

const (
	StateUninitialized SessionState = "UNINITIALIZED"
	StateLoading       SessionState = "LOADING"
	StateReady         SessionState = "READY"
	StateEmpty         SessionState = "EMPTY"      // principal has no accessible account
	StateSignedOut     SessionState = "SIGNED_OUT" // absorbing
)

// Switch and lifecycle failures. Failed operations log, return one of
// these, and leave the session in its prior state; callers that ignore the
// error can still observe the unchanged state.
var (
	ErrSessionClosed       = errors.New("session is signed out")
	ErrNotInitialized      = errors.New("session not initialized")
	ErrUnknownAccount      = errors.New("unknown account")
	ErrUnknownOrganization = errors.New("unknown organization")
	ErrUnauthorized        = errors.New("principal has no membership for target")
	ErrNoAccessibleAccount = errors.New("no accessible account")
)

// Session is the stateful core of the engine: it tracks which organization,
// account and membership a signed-in principal is operating under and
// answers permission questions against the active membership's statement
// list. Construct one per sign-in with NewSession and pass it explicitly to
// whatever needs it; there is no ambient singleton.
//
// All operations are synchronous in-memory transitions. The mutex only
// guards against accidental cross-goroutine reads; the engine assumes one
// principal session driven serially.
type Session struct {
	mu     sync.RWMutex
	store  OrgStore
	recall *AccountRecall
	log    logger.Logger
	now    func() time.Time

	// set via WithRecall, consumed once in NewSession
	recallKV KV

	decisions   *ristretto.Cache
	decisionTTL time.Duration

	state            SessionState
	principalID      string
	activeOrg        *Organization
	activeAccount    *Account
	activeMembership *AccountMember
	accounts         []*Account
	organizations    []*Organization
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session) error

// WithLogger installs a Logger on the session.
func WithLogger(l logger.Logger) SessionOption {
	return func(s *Session) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithRecall installs the key-value store used to remember the selected
// account id across restarts. Without it the session never persists.
func WithRecall(kv KV) SessionOption {
	return func(s *Session) error {
		s.recallKV = kv
		return nil
	}
}

// WithDecisionCache enables a ristretto-backed cache for HasPermission
// verdicts, bounded by ttl. The cache is cleared on every account or
// organization switch and on sign-out.
func WithDecisionCache(ttl time.Duration, numCounters, maxCost, bufferItems int64) SessionOption {
	return func(s *Session) error {
		if ttl <= 0 {
			return fmt.Errorf("decision cache ttl must be positive")
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: bufferItems,
		})
		if err != nil {
			return fmt.Errorf("decision cache: %w", err)
		}
		s.decisions = cache
		s.decisionTTL = ttl
		return nil
	}
}

// WithClock overrides the session's time source (used for audit fields and
// decision timestamps in tests).
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewSession builds an uninitialized session over the given read-only
// organization store.
func NewSession(store OrgStore, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("org store is required")
	}
	s := &Session{
		store: store,
		log:   logger.NewPhusluLogger(),
		now:   time.Now,
		state: StateUninitialized,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.recall = NewAccountRecall(s.recallKV, s.log)
	return s, nil
}

// Initialize loads the principal's accessible accounts and organizations
// and selects the initial active account: a valid persisted id first, the
// designated default membership next, the first membership in listing order
// after that. With zero accessible accounts the session lands in
// StateEmpty (not an error). Store I/O failures revert to the prior state.
func (s *Session) Initialize(ctx context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSignedOut {
		return ErrSessionClosed
	}
	prior := s.state
	s.state = StateLoading
	s.principalID = principalID

	accounts, err := s.store.AccountsForPrincipal(ctx, principalID)
	if err != nil {
		s.state = prior
		return fmt.Errorf("load accounts for %s: %w", principalID, err)
	}
	s.accounts = accounts
	s.organizations = s.deriveOrganizations(ctx, accounts)

	chosen := s.restoreAccount(ctx)
	if chosen == nil {
		s.activeAccount = nil
		s.activeMembership = nil
		s.activeOrg = nil
		s.state = StateEmpty
		s.log.Info("session initialized with no accessible account", "principal", principalID)
		return nil
	}
	if err := s.activateLocked(ctx, chosen); err != nil {
		// restoreAccount validated the candidate, so this only fires on
		// store I/O failure between the two reads.
		s.state = prior
		return err
	}
	s.state = StateReady
	s.log.Info("session initialized",
		"principal", principalID,
		"account", s.activeAccount.ID,
		"organization", s.activeOrg.ID,
		"role", string(s.activeMembership.Role))
	return nil
}

// restoreAccount is the persisted-session reconciliation step: persisted id
// first (validated against the accessible set), the designated default
// account next, the first accessible account last. Each tier also requires
// a live membership and a resolvable organization, so inconsistent
// directory data degrades to the next tier instead of a broken session.
func (s *Session) restoreAccount(ctx context.Context) *Account {
	if persisted, ok := s.recall.Load(ctx); ok {
		if account := s.accessibleAccountLocked(persisted); account != nil && s.candidateValid(ctx, account) {
			return account
		}
		s.log.Info("persisted account not restorable, falling back", "account", persisted)
	}

	if def, err := s.store.DefaultAccount(ctx, s.principalID); err == nil && def != nil {
		if account := s.accessibleAccountLocked(def.ID); account != nil && s.candidateValid(ctx, account) {
			return account
		}
	} else if err != nil && !IsNotFound(err) {
		s.log.Error("default account lookup failed", "principal", s.principalID, "error", err)
	}

	for _, account := range s.accounts {
		if s.candidateValid(ctx, account) {
			return account
		}
	}
	return nil
}

// candidateValid checks that a bootstrap candidate still has a membership
// for the principal and a resolvable owning organization.
func (s *Session) candidateValid(ctx context.Context, account *Account) bool {
	if _, err := s.store.Membership(ctx, s.principalID, account.ID); err != nil {
		if !IsNotFound(err) {
			s.log.Error("membership lookup failed", "account", account.ID, "error", err)
		}
		return false
	}
	if _, err := s.store.OrganizationByID(ctx, account.OrganizationID); err != nil {
		s.log.Error("account references unresolvable organization",
			"account", account.ID, "organization", account.OrganizationID, "error", err)
		return false
	}
	return true
}

// activateLocked points the session at account: looks up the membership
// and owning organization, persists the selection and drops any cached
// verdicts. Caller holds the write lock.
func (s *Session) activateLocked(ctx context.Context, account *Account) error {
	membership, err := s.store.Membership(ctx, s.principalID, account.ID)
	if err != nil {
		return fmt.Errorf("membership for %s on %s: %w", s.principalID, account.ID, err)
	}
	org := s.activeOrg
	if org == nil || org.ID != account.OrganizationID {
		org, err = s.store.OrganizationByID(ctx, account.OrganizationID)
		if err != nil {
			return fmt.Errorf("organization %s: %w", account.OrganizationID, err)
		}
	}
	s.activeAccount = account
	s.activeMembership = membership
	s.activeOrg = org
	s.recall.Save(ctx, account.ID)
	s.invalidateDecisions()
	return nil
}

// deriveOrganizations resolves the distinct organizations of the given
// accounts, in order of first appearance. Unresolvable references are
// logged and skipped.
func (s *Session) deriveOrganizations(ctx context.Context, accounts []*Account) []*Organization {
	seen := make(map[string]bool, len(accounts))
	out := make([]*Organization, 0, len(accounts))
	for _, account := range accounts {
		if seen[account.OrganizationID] {
			continue
		}
		seen[account.OrganizationID] = true
		org, err := s.store.OrganizationByID(ctx, account.OrganizationID)
		if err != nil {
			s.log.Error("skipping unresolvable organization",
				"organization", account.OrganizationID, "error", err)
			continue
		}
		out = append(out, org)
	}
	return out
}

// SwitchAccount makes accountID the active account. Switching to the
// already-active account is a no-op. An unknown account yields
// ErrUnknownAccount, an account the principal has no membership for yields
// ErrUnauthorized; in both cases the prior state is retained. The active
// organization only changes when the target account lives in a different
// one.
func (s *Session) SwitchAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSignedOut:
		return ErrSessionClosed
	case StateUninitialized, StateLoading:
		return ErrNotInitialized
	}

	if s.activeAccount != nil && s.activeAccount.ID == accountID {
		s.log.Debug("switch to already-active account ignored", "account", accountID)
		return nil
	}

	account := s.accessibleAccountLocked(accountID)
	if account == nil {
		if _, err := s.store.AccountByID(ctx, accountID); err != nil {
			if IsNotFound(err) {
				s.log.Info("switch rejected: account does not exist", "account", accountID)
				return ErrUnknownAccount
			}
			return fmt.Errorf("account %s: %w", accountID, err)
		}
		s.log.Info("switch rejected: account not accessible to principal",
			"account", accountID, "principal", s.principalID)
		return ErrUnauthorized
	}

	if err := s.activateLocked(ctx, account); err != nil {
		if IsNotFound(err) {
			s.log.Info("switch rejected: no membership for account",
				"account", accountID, "principal", s.principalID)
			return ErrUnauthorized
		}
		return err
	}
	s.state = StateReady
	s.log.Info("switched account",
		"principal", s.principalID,
		"account", account.ID,
		"organization", account.OrganizationID)
	return nil
}

// SwitchOrganization selects an accessible account inside orgID and
// delegates to SwitchAccount: the organization's master account when the
// principal can access it, otherwise the first accessible account of that
// organization in listing order. An unknown organization yields
// ErrUnknownOrganization; an organization without any accessible account
// yields ErrNoAccessibleAccount. State is retained on failure.
func (s *Session) SwitchOrganization(ctx context.Context, orgID string) error {
	s.mu.RLock()
	if s.state == StateSignedOut {
		s.mu.RUnlock()
		return ErrSessionClosed
	}
	if s.state == StateUninitialized || s.state == StateLoading {
		s.mu.RUnlock()
		return ErrNotInitialized
	}

	org, err := s.store.OrganizationByID(ctx, orgID)
	if err != nil {
		s.mu.RUnlock()
		if IsNotFound(err) {
			s.log.Info("organization switch rejected: unknown organization", "organization", orgID)
			return ErrUnknownOrganization
		}
		return fmt.Errorf("organization %s: %w", orgID, err)
	}

	var target *Account
	for _, account := range s.accounts {
		if account.OrganizationID != orgID {
			continue
		}
		if account.ID == org.MasterAccountID {
			target = account
			break
		}
		if target == nil {
			target = account
		}
	}
	s.mu.RUnlock()

	if target == nil {
		s.log.Info("organization switch rejected: no accessible account in organization",
			"organization", orgID, "principal", s.principalID)
		return ErrNoAccessibleAccount
	}
	return s.SwitchAccount(ctx, target.ID)
}

// HasPermission reports whether the active membership allows action,
// optionally constrained to a resource (pass at most one). It returns true
// only on an explicit Allow: Deny, NoMatch and the absence of an active
// membership all come back false.
func (s *Session) HasPermission(action string, resource ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeMembership == nil {
		return false
	}

	withResource := len(resource) > 0
	res := ""
	if withResource {
		res = resource[0]
	}

	var key string
	if s.decisions != nil {
		key = s.activeAccount.ID + "\x00" + action + "\x00" + strconv.FormatBool(withResource) + "\x00" + res
		if cached, ok := s.decisions.Get(key); ok {
			if verdict, ok := cached.(Verdict); ok {
				return verdict == VerdictAllow
			}
		}
	}

	var verdict Verdict
	if withResource {
		verdict = EvaluateResource(s.activeMembership.Permissions, action, res)
	} else {
		verdict = Evaluate(s.activeMembership.Permissions, action)
	}

	if s.decisions != nil {
		s.decisions.SetWithTTL(key, verdict, 1, s.decisionTTL)
	}
	s.log.Debug("permission check",
		"principal", s.principalID,
		"account", s.activeAccount.ID,
		"action", action,
		"resource", res,
		"verdict", string(verdict))
	return verdict == VerdictAllow
}

// ExplainPermission evaluates like HasPermission but returns the full
// decision with the deciding statement index and per-statement trace. It
// bypasses the decision cache.
func (s *Session) ExplainPermission(action string, resource ...string) *Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeMembership == nil {
		return &Decision{
			Verdict:      VerdictNoMatch,
			MatchedIndex: -1,
			Reason:       "no active membership",
			Timestamp:    s.now(),
		}
	}
	d := Explain(s.activeMembership.Permissions, action, resource...)
	d.Timestamp = s.now()
	return d
}

// CanManageOrganization reports whether the active membership carries the
// organization-admin role. This is a role check, not a statement check: a
// wildcard Allow on a non-admin role does not grant it.
func (s *Session) CanManageOrganization() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeMembership != nil && s.activeMembership.Role == RoleOrganizationAdmin
}

// CanSwitchAccounts reports whether more than one account is accessible.
func (s *Session) CanSwitchAccounts() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts) > 1
}

// SignOut clears all session state and the persisted account id and moves
// the session to its absorbing SignedOut state.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSignedOut {
		return
	}
	principal := s.principalID
	s.activeOrg = nil
	s.activeAccount = nil
	s.activeMembership = nil
	s.accounts = nil
	s.organizations = nil
	s.principalID = ""
	s.recall.Clear(ctx)
	s.invalidateDecisions()
	s.state = StateSignedOut
	s.log.Info("session signed out", "principal", principal)
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// PrincipalID returns the signed-in principal, empty after sign-out.
func (s *Session) PrincipalID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principalID
}

// ActiveOrganization returns a copy of the active organization, nil when
// none is selected.
func (s *Session) ActiveOrganization() *Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeOrg.Clone()
}

// ActiveAccount returns a copy of the active account, nil when none is
// selected.
func (s *Session) ActiveAccount() *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeAccount.Clone()
}

// ActiveMembership returns a copy of the active membership, nil when none
// is selected.
func (s *Session) ActiveMembership() *AccountMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeMembership.Clone()
}

// ActiveRole returns the active membership's role, empty when none.
func (s *Session) ActiveRole() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeMembership == nil {
		return ""
	}
	return s.activeMembership.Role
}

// Permissions returns a copy of the active membership's ordered statement
// list.
func (s *Session) Permissions() []Statement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeMembership == nil {
		return nil
	}
	return CloneStatements(s.activeMembership.Permissions)
}

// AccessibleAccounts returns the accounts the principal can operate in,
// in listing order.
func (s *Session) AccessibleAccounts() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, len(s.accounts))
	for i, account := range s.accounts {
		out[i] = account.Clone()
	}
	return out
}

// AccessibleOrganizations returns the distinct organizations of the
// accessible accounts, in order of first appearance.
func (s *Session) AccessibleOrganizations() []*Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Organization, len(s.organizations))
	for i, org := range s.organizations {
		out[i] = org.Clone()
	}
	return out
}

func (s *Session) accessibleAccountLocked(accountID string) *Account {
	for _, account := range s.accounts {
		if account.ID == accountID {
			return account
		}
	}
	return nil
}

func (s *Session) invalidateDecisions() {
	if s.decisions != nil {
		s.decisions.Clear()
	}
}
