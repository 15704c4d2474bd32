package tenancy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prashantrr143/bhoomi-tenancy/logger"
)

// DirectorySnapshot is a point-in-time export of one organization's
// directory: the org record, its OU tree and the accounts and
// memberships under it. Snapshots are what downstream caches and
// read replicas consume.
type DirectorySnapshot struct {
	Organization *Organization         `json:"organization"`
	Root         *OrganizationRoot     `json:"root,omitempty"`
	Units        []*OrganizationalUnit `json:"units,omitempty"`
	Accounts     []*Account            `json:"accounts,omitempty"`
	Members      []*AccountMember      `json:"members,omitempty"`
	Meta         map[string]any        `json:"meta,omitempty"`
}

// Checksum returns a deterministic hash of the snapshot contents.
// Meta is excluded so annotating a snapshot does not change its identity.
func (s *DirectorySnapshot) Checksum() string {
	data, _ := json.Marshal(struct {
		Organization *Organization
		Root         *OrganizationRoot
		Units        []*OrganizationalUnit
		Accounts     []*Account
		Members      []*AccountMember
	}{
		Organization: s.Organization,
		Root:         s.Root,
		Units:        s.Units,
		Accounts:     s.Accounts,
		Members:      s.Members,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SignedDirectorySnapshot pairs a snapshot with an ed25519 signature
// over its checksum.
type SignedDirectorySnapshot struct {
	Snapshot  *DirectorySnapshot `json:"snapshot"`
	Signature string             `json:"signature"` // base64(sig)
}

// SignSnapshot signs the snapshot checksum with priv.
func SignSnapshot(priv ed25519.PrivateKey, snap *DirectorySnapshot) (*SignedDirectorySnapshot, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	data, err := json.Marshal(struct {
		OrganizationID string
		Checksum       string
	}{
		OrganizationID: snapshotOrgID(snap),
		Checksum:       snap.Checksum(),
	})
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(priv, data)
	return &SignedDirectorySnapshot{
		Snapshot:  snap,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// VerifySnapshotSignature verifies that the signature matches the
// snapshot checksum under pub.
func VerifySnapshotSignature(pub ed25519.PublicKey, signed *SignedDirectorySnapshot) (bool, error) {
	if signed == nil || signed.Snapshot == nil {
		return false, fmt.Errorf("signed snapshot is required")
	}
	sig, err := base64.StdEncoding.DecodeString(signed.Signature)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(struct {
		OrganizationID string
		Checksum       string
	}{
		OrganizationID: snapshotOrgID(signed.Snapshot),
		Checksum:       signed.Snapshot.Checksum(),
	})
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, sig), nil
}

func snapshotOrgID(s *DirectorySnapshot) string {
	if s.Organization == nil {
		return ""
	}
	return s.Organization.ID
}

// SnapshotSource produces a directory snapshot for one organization.
// Stores that can export their contents implement it.
type SnapshotSource interface {
	Snapshot(ctx context.Context, orgID string) (*DirectorySnapshot, error)
}

type SnapshotSubscriber interface {
	OnSnapshot(ctx context.Context, orgID string, pub ed25519.PublicKey, snap *SignedDirectorySnapshot) error
}

type SnapshotSubscriberFunc func(ctx context.Context, orgID string, pub ed25519.PublicKey, snap *SignedDirectorySnapshot) error

func (f SnapshotSubscriberFunc) OnSnapshot(ctx context.Context, orgID string, pub ed25519.PublicKey, snap *SignedDirectorySnapshot) error {
	return f(ctx, orgID, pub, snap)
}

// SnapshotDistributor watches for directory change notifications and
// pushes freshly signed snapshots to registered subscribers. Signing
// keys rotate on an interval; subscribers receive the current public
// key with every delivery.
type SnapshotDistributor struct {
	source           SnapshotSource
	pub              ed25519.PublicKey
	priv             ed25519.PrivateKey
	rotationInterval time.Duration
	notifyCh         chan string
	stopCh           chan struct{}
	subscribers      map[string][]SnapshotSubscriber
	log              logger.Logger
	mu               sync.RWMutex
	started          bool
	wg               sync.WaitGroup
}

type SnapshotDistributorOption func(*SnapshotDistributor)

func WithSnapshotSigningKey(priv ed25519.PrivateKey) SnapshotDistributorOption {
	return func(d *SnapshotDistributor) {
		if priv != nil && len(priv) == ed25519.PrivateKeySize {
			d.priv = append(ed25519.PrivateKey{}, priv...)
			d.pub = priv.Public().(ed25519.PublicKey)
		}
	}
}

func WithSnapshotRotationInterval(interval time.Duration) SnapshotDistributorOption {
	return func(d *SnapshotDistributor) {
		if interval > 0 {
			d.rotationInterval = interval
		}
	}
}

func WithSnapshotLogger(l logger.Logger) SnapshotDistributorOption {
	return func(d *SnapshotDistributor) {
		if l != nil {
			d.log = l
		}
	}
}

func NewSnapshotDistributor(source SnapshotSource, opts ...SnapshotDistributorOption) (*SnapshotDistributor, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	dist := &SnapshotDistributor{
		source:           source,
		priv:             priv,
		pub:              pub,
		rotationInterval: 24 * time.Hour,
		notifyCh:         make(chan string, 1024),
		stopCh:           make(chan struct{}),
		subscribers:      make(map[string][]SnapshotSubscriber),
		log:              logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(dist)
	}
	return dist, nil
}

func (d *SnapshotDistributor) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.rotationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case orgID := <-d.notifyCh:
				if orgID == "" {
					continue
				}
				if err := d.distributeOrganization(ctx, orgID); err != nil {
					d.log.Error("snapshot distribution failed", "organization_id", orgID, "error", err)
				}
			case <-ticker.C:
				if err := d.RotateSigningKey(); err != nil {
					d.log.Error("snapshot key rotation failed", "error", err)
				}
			}
		}
	}()
}

func (d *SnapshotDistributor) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NotifyDirectoryChange queues a snapshot rebuild for orgID. Drops the
// notification when the queue is full; a later change will catch up.
func (d *SnapshotDistributor) NotifyDirectoryChange(orgID string) {
	if orgID == "" {
		return
	}
	select {
	case d.notifyCh <- orgID:
	default:
	}
}

// RegisterSubscriber subscribes to snapshots for orgID; an empty orgID
// subscribes to every organization.
func (d *SnapshotDistributor) RegisterSubscriber(orgID string, sub SnapshotSubscriber) {
	if sub == nil {
		return
	}
	if orgID == "" {
		orgID = "*"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[orgID] = append(d.subscribers[orgID], sub)
}

func (d *SnapshotDistributor) RotateSigningKey() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.priv = priv
	d.pub = pub
	d.mu.Unlock()
	return nil
}

func (d *SnapshotDistributor) CurrentPublicKey() ed25519.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(ed25519.PublicKey(nil), d.pub...)
}

func (d *SnapshotDistributor) distributeOrganization(ctx context.Context, orgID string) error {
	snap, err := d.source.Snapshot(ctx, orgID)
	if err != nil {
		return err
	}

	d.mu.RLock()
	priv := d.priv
	pub := d.pub
	d.mu.RUnlock()

	signed, err := SignSnapshot(priv, snap)
	if err != nil {
		return err
	}
	if snap.Meta == nil {
		snap.Meta = map[string]any{}
	}
	snap.Meta["organization_id"] = orgID
	snap.Meta["generated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	snap.Meta["signing_key"] = base64.StdEncoding.EncodeToString(pub)

	subs := d.collectSubscribers(orgID)
	for _, sub := range subs {
		if err := sub.OnSnapshot(ctx, orgID, d.CurrentPublicKey(), signed); err != nil {
			d.log.Error("snapshot subscriber error", "organization_id", orgID, "error", err)
		}
	}
	return nil
}

func (d *SnapshotDistributor) collectSubscribers(orgID string) []SnapshotSubscriber {
	d.mu.RLock()
	defer d.mu.RUnlock()
	subs := make([]SnapshotSubscriber, 0, len(d.subscribers[orgID])+len(d.subscribers["*"]))
	subs = append(subs, d.subscribers[orgID]...)
	subs = append(subs, d.subscribers["*"]...)
	return subs
}
