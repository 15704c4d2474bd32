package tenancy

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/prashantrr143/bhoomi-tenancy/logger"
)

// ============================================================================
// SESSION PERSISTENCE
// ============================================================================

// ErrKeyNotFound is returned (wrapped) by KV implementations when a key is
// absent.
var ErrKeyNotFound = errors.New("key not found")

// KV is the durable key-value contract behind session persistence. Any
// store that can hold one string per key qualifies; see stores.MemoryKV,
// stores.SQLKV and stores.RedisKV.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// IsKeyNotFound reports whether err denotes an absent key.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// RecallKey is the fixed storage key under which the selected account id
// is remembered across restarts.
const RecallKey = "bhoomi.tenancy.selected_account"

// maxRecallValueLen bounds a persisted account id; anything longer is
// treated as corrupt.
const maxRecallValueLen = 128

// AccountRecall is a scoped wrapper around a KV that remembers the
// last-selected account id. It never surfaces store errors to the session:
// failures and corrupt values are logged and treated as absent, so a bad
// persistence layer can only ever cost the restore, never the sign-in.
type AccountRecall struct {
	kv  KV
	key string
	log logger.Logger
}

// NewAccountRecall wraps kv under RecallKey. A nil kv yields a recall that
// remembers nothing, which is a valid (ephemeral) configuration.
func NewAccountRecall(kv KV, log logger.Logger) *AccountRecall {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &AccountRecall{kv: kv, key: RecallKey, log: log}
}

// Load returns the persisted account id, or ok=false when nothing usable
// is stored.
func (r *AccountRecall) Load(ctx context.Context) (string, bool) {
	if r == nil || r.kv == nil {
		return "", false
	}
	value, err := r.kv.Get(ctx, r.key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			r.log.Error("account recall load failed", "key", r.key, "error", err)
		}
		return "", false
	}
	id, ok := sanitizeRecallValue(value)
	if !ok {
		r.log.Error("account recall value corrupt, treating as absent", "key", r.key)
		return "", false
	}
	return id, true
}

// Save persists the selected account id. Failures are logged and dropped.
func (r *AccountRecall) Save(ctx context.Context, accountID string) {
	if r == nil || r.kv == nil || accountID == "" {
		return
	}
	if err := r.kv.Set(ctx, r.key, accountID); err != nil {
		r.log.Error("account recall save failed", "key", r.key, "account", accountID, "error", err)
	}
}

// Clear removes the persisted account id. Failures are logged and dropped.
func (r *AccountRecall) Clear(ctx context.Context) {
	if r == nil || r.kv == nil {
		return
	}
	if err := r.kv.Delete(ctx, r.key); err != nil && !errors.Is(err, ErrKeyNotFound) {
		r.log.Error("account recall clear failed", "key", r.key, "error", err)
	}
}

// sanitizeRecallValue validates a stored value. Empty, oversized,
// non-UTF-8 or control-character-bearing values count as corrupt.
func sanitizeRecallValue(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxRecallValueLen {
		return "", false
	}
	if !utf8.ValidString(value) {
		return "", false
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	return value, true
}
