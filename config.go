package tenancy

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a complete organization directory dataset plus session engine
// settings. It is the unit the config tool converts, validates and applies
// to a writable store.
type Config struct {
	Version       uint16                `json:"version" yaml:"version"`
	Organizations []*Organization       `json:"organizations" yaml:"organizations"`
	Roots         []*OrganizationRoot   `json:"roots" yaml:"roots"`
	Units         []*OrganizationalUnit `json:"units" yaml:"units"`
	Accounts      []*Account            `json:"accounts" yaml:"accounts"`
	Members       []*AccountMember      `json:"members" yaml:"members"`
	Session       SessionConfig         `json:"session" yaml:"session"`
}

// SessionConfig carries tunables applied when constructing sessions from a
// config file.
type SessionConfig struct {
	DecisionCacheTTL    int64 `json:"decision_cache_ttl_ms" yaml:"decision_cache_ttl_ms"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// SessionOptions converts the config into session options. A zero
// DecisionCacheTTL disables the decision cache.
func (c SessionConfig) SessionOptions() []SessionOption {
	if c.DecisionCacheTTL <= 0 {
		return nil
	}
	num := c.RistrettoNumCounter
	if num <= 0 {
		num = 1e4
	}
	cost := c.RistrettoMaxCost
	if cost <= 0 {
		cost = 1 << 20
	}
	buf := c.RistrettoBuffer
	if buf <= 0 {
		buf = 64
	}
	return []SessionOption{
		WithDecisionCache(time.Duration(c.DecisionCacheTTL)*time.Millisecond, num, cost, buf),
	}
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBinary loads from the compact binary protocol
func (l *ConfigLoader) LoadBinary(data []byte) (*Config, error) {
	return decodeBinaryConfig(bytes.NewReader(data))
}

// EncodeBinaryConfig encodes config to the compact binary format
func EncodeBinaryConfig(cfg *Config) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeBinaryConfig(cfg, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks referential integrity of the dataset: unique ids,
// resolvable parent and organization references, recognized roles and
// effects, and at most one default membership per principal.
func (c *Config) Validate() error {
	orgs := make(map[string]bool, len(c.Organizations))
	for _, org := range c.Organizations {
		if org.ID == "" {
			return fmt.Errorf("organization with empty id")
		}
		if orgs[org.ID] {
			return fmt.Errorf("duplicate organization id %s", org.ID)
		}
		orgs[org.ID] = true
	}

	parents := make(map[string]bool, len(c.Roots)+len(c.Units))
	rootByOrg := make(map[string]bool, len(c.Roots))
	for _, root := range c.Roots {
		if !orgs[root.OrganizationID] {
			return fmt.Errorf("root %s references unknown organization %s", root.ID, root.OrganizationID)
		}
		if rootByOrg[root.OrganizationID] {
			return fmt.Errorf("organization %s has more than one root", root.OrganizationID)
		}
		rootByOrg[root.OrganizationID] = true
		parents[root.ID] = true
	}

	for _, ou := range c.Units {
		if parents[ou.ID] {
			return fmt.Errorf("duplicate unit id %s", ou.ID)
		}
		if !orgs[ou.OrganizationID] {
			return fmt.Errorf("unit %s references unknown organization %s", ou.ID, ou.OrganizationID)
		}
		parents[ou.ID] = true
	}
	for _, ou := range c.Units {
		if !parents[ou.ParentID] {
			return fmt.Errorf("unit %s references unknown parent %s", ou.ID, ou.ParentID)
		}
	}

	accounts := make(map[string]bool, len(c.Accounts))
	for _, account := range c.Accounts {
		if accounts[account.ID] {
			return fmt.Errorf("duplicate account id %s", account.ID)
		}
		if !orgs[account.OrganizationID] {
			return fmt.Errorf("account %s references unknown organization %s", account.ID, account.OrganizationID)
		}
		if account.ParentID != "" && !parents[account.ParentID] {
			return fmt.Errorf("account %s references unknown parent %s", account.ID, account.ParentID)
		}
		accounts[account.ID] = true
	}

	defaults := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if !accounts[m.AccountID] {
			return fmt.Errorf("member %s references unknown account %s", m.ID, m.AccountID)
		}
		if m.PrincipalID == "" {
			return fmt.Errorf("member %s has empty principal", m.ID)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("member %s has unknown role %q", m.ID, m.Role)
		}
		if m.IsDefault {
			if defaults[m.PrincipalID] {
				return fmt.Errorf("principal %s has more than one default membership", m.PrincipalID)
			}
			defaults[m.PrincipalID] = true
		}
		for i, stmt := range m.Permissions {
			if !stmt.Effect.Valid() {
				return fmt.Errorf("member %s statement %d has unknown effect %q", m.ID, i, stmt.Effect)
			}
			if len(stmt.Actions) == 0 {
				return fmt.Errorf("member %s statement %d has no action patterns", m.ID, i)
			}
		}
	}
	return nil
}

// Apply seeds a writable store with the dataset, in dependency order.
// Statement order inside each membership is preserved as listed.
func (c *Config) Apply(ctx context.Context, w OrgWriter) error {
	for _, org := range c.Organizations {
		if err := w.PutOrganization(ctx, org); err != nil {
			return fmt.Errorf("put organization %s: %w", org.ID, err)
		}
	}
	for _, root := range c.Roots {
		if err := w.PutRoot(ctx, root); err != nil {
			return fmt.Errorf("put root %s: %w", root.ID, err)
		}
	}
	for _, ou := range c.Units {
		if err := w.PutOU(ctx, ou); err != nil {
			return fmt.Errorf("put unit %s: %w", ou.ID, err)
		}
	}
	for _, account := range c.Accounts {
		if err := w.PutAccount(ctx, account); err != nil {
			return fmt.Errorf("put account %s: %w", account.ID, err)
		}
	}
	for _, m := range c.Members {
		if err := w.PutMember(ctx, m); err != nil {
			return fmt.Errorf("put member %s: %w", m.ID, err)
		}
	}
	return nil
}

// Binary protocol encoding/decoding
const (
	binaryMagic   = 0x4254 // "BT" for bhoomi-tenancy
	binaryVersion = 1
)

func encodeBinaryConfig(cfg *Config, w io.Writer) error {
	buf := &bytes.Buffer{}

	// Header: magic(2) + version(2) + config_version(2)
	binary.Write(buf, binary.LittleEndian, uint16(binaryMagic))
	binary.Write(buf, binary.LittleEndian, uint16(binaryVersion))
	binary.Write(buf, binary.LittleEndian, cfg.Version)

	writeSection(buf, 0x01, func(b *bytes.Buffer) { encodeOrganizations(b, cfg.Organizations) })
	writeSection(buf, 0x02, func(b *bytes.Buffer) { encodeRoots(b, cfg.Roots) })
	writeSection(buf, 0x03, func(b *bytes.Buffer) { encodeUnits(b, cfg.Units) })
	writeSection(buf, 0x04, func(b *bytes.Buffer) { encodeAccounts(b, cfg.Accounts) })
	writeSection(buf, 0x05, func(b *bytes.Buffer) { encodeMembers(b, cfg.Members) })
	writeSection(buf, 0x06, func(b *bytes.Buffer) { encodeSessionConfig(b, &cfg.Session) })

	_, err := w.Write(buf.Bytes())
	return err
}

func decodeBinaryConfig(r io.Reader) (*Config, error) {
	cfg := &Config{}

	var magic, ver, cfgVer uint16
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &ver)
	binary.Read(r, binary.LittleEndian, &cfgVer)

	if magic != binaryMagic {
		return nil, fmt.Errorf("invalid magic: %x", magic)
	}
	if ver != binaryVersion {
		return nil, fmt.Errorf("unsupported version: %d", ver)
	}
	cfg.Version = cfgVer

	for {
		var tag uint8
		if err := binary.Read(r, binary.LittleEndian, &tag); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		var size uint32
		binary.Read(r, binary.LittleEndian, &size)
		data := make([]byte, size)
		io.ReadFull(r, data)

		switch tag {
		case 0x01:
			cfg.Organizations = decodeOrganizations(data)
		case 0x02:
			cfg.Roots = decodeRoots(data)
		case 0x03:
			cfg.Units = decodeUnits(data)
		case 0x04:
			cfg.Accounts = decodeAccounts(data)
		case 0x05:
			cfg.Members = decodeMembers(data)
		case 0x06:
			cfg.Session = decodeSessionConfig(data)
		}
	}

	return cfg, nil
}

func writeSection(buf *bytes.Buffer, tag uint8, fn func(*bytes.Buffer)) {
	tmp := &bytes.Buffer{}
	fn(tmp)
	binary.Write(buf, binary.LittleEndian, tag)
	binary.Write(buf, binary.LittleEndian, uint32(tmp.Len()))
	buf.Write(tmp.Bytes())
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) string {
	var l uint16
	binary.Read(r, binary.LittleEndian, &l)
	b := make([]byte, l)
	r.Read(b)
	return string(b)
}

func writeStringList(buf *bytes.Buffer, list []string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(list)))
	for _, s := range list {
		writeString(buf, s)
	}
}

func readStringList(r *bytes.Reader) []string {
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	if count == 0 {
		return nil
	}
	out := make([]string, count)
	for i := range out {
		out[i] = readString(r)
	}
	return out
}

func encodeOrganizations(buf *bytes.Buffer, orgs []*Organization) {
	binary.Write(buf, binary.LittleEndian, uint16(len(orgs)))
	for _, org := range orgs {
		writeString(buf, org.ID)
		writeString(buf, org.Name)
		writeString(buf, org.MasterAccountID)
		writeStringList(buf, org.EnabledPolicyTypes)
		writeString(buf, string(org.Status))
	}
}

func decodeOrganizations(data []byte) []*Organization {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	orgs := make([]*Organization, count)
	for i := range orgs {
		org := &Organization{}
		org.ID = readString(r)
		org.Name = readString(r)
		org.MasterAccountID = readString(r)
		org.EnabledPolicyTypes = readStringList(r)
		org.Status = OrgStatus(readString(r))
		orgs[i] = org
	}
	return orgs
}

func encodeRoots(buf *bytes.Buffer, roots []*OrganizationRoot) {
	binary.Write(buf, binary.LittleEndian, uint16(len(roots)))
	for _, root := range roots {
		writeString(buf, root.ID)
		writeString(buf, root.OrganizationID)
		writeString(buf, root.Name)
	}
}

func decodeRoots(data []byte) []*OrganizationRoot {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	roots := make([]*OrganizationRoot, count)
	for i := range roots {
		root := &OrganizationRoot{}
		root.ID = readString(r)
		root.OrganizationID = readString(r)
		root.Name = readString(r)
		roots[i] = root
	}
	return roots
}

func encodeUnits(buf *bytes.Buffer, units []*OrganizationalUnit) {
	binary.Write(buf, binary.LittleEndian, uint16(len(units)))
	for _, ou := range units {
		writeString(buf, ou.ID)
		writeString(buf, ou.OrganizationID)
		writeString(buf, ou.ParentID)
		writeString(buf, ou.Name)
		writeString(buf, string(ou.Status))
	}
}

func decodeUnits(data []byte) []*OrganizationalUnit {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	units := make([]*OrganizationalUnit, count)
	for i := range units {
		ou := &OrganizationalUnit{}
		ou.ID = readString(r)
		ou.OrganizationID = readString(r)
		ou.ParentID = readString(r)
		ou.Name = readString(r)
		ou.Status = OUStatus(readString(r))
		units[i] = ou
	}
	return units
}

func encodeAccounts(buf *bytes.Buffer, accounts []*Account) {
	binary.Write(buf, binary.LittleEndian, uint16(len(accounts)))
	for _, account := range accounts {
		writeString(buf, account.ID)
		writeString(buf, account.OrganizationID)
		writeString(buf, account.ParentID)
		writeString(buf, account.Name)
		writeString(buf, account.Email)
		writeString(buf, string(account.Status))
		binary.Write(buf, binary.LittleEndian, uint16(len(account.Tags)))
		for k, v := range account.Tags {
			writeString(buf, k)
			writeString(buf, v)
		}
	}
}

func decodeAccounts(data []byte) []*Account {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	accounts := make([]*Account, count)
	for i := range accounts {
		account := &Account{}
		account.ID = readString(r)
		account.OrganizationID = readString(r)
		account.ParentID = readString(r)
		account.Name = readString(r)
		account.Email = readString(r)
		account.Status = AccountStatus(readString(r))
		var tagCount uint16
		binary.Read(r, binary.LittleEndian, &tagCount)
		if tagCount > 0 {
			account.Tags = make(map[string]string, tagCount)
			for j := 0; j < int(tagCount); j++ {
				k := readString(r)
				account.Tags[k] = readString(r)
			}
		}
		accounts[i] = account
	}
	return accounts
}

func encodeMembers(buf *bytes.Buffer, members []*AccountMember) {
	binary.Write(buf, binary.LittleEndian, uint16(len(members)))
	for _, m := range members {
		writeString(buf, m.ID)
		writeString(buf, m.PrincipalID)
		writeString(buf, m.AccountID)
		writeString(buf, string(m.Role))
		buf.WriteByte(map[bool]byte{true: 1, false: 0}[m.IsDefault])
		writeString(buf, m.AddedBy)
		binary.Write(buf, binary.LittleEndian, m.AddedAt.Unix())
		binary.Write(buf, binary.LittleEndian, uint16(len(m.Permissions)))
		for _, stmt := range m.Permissions {
			writeStringList(buf, stmt.Actions)
			writeStringList(buf, stmt.Resources)
			buf.WriteByte(map[Effect]byte{EffectAllow: 1, EffectDeny: 2}[stmt.Effect])
		}
	}
}

func decodeMembers(data []byte) []*AccountMember {
	r := bytes.NewReader(data)
	var count uint16
	binary.Read(r, binary.LittleEndian, &count)
	members := make([]*AccountMember, count)
	for i := range members {
		m := &AccountMember{}
		m.ID = readString(r)
		m.PrincipalID = readString(r)
		m.AccountID = readString(r)
		m.Role = Role(readString(r))
		def, _ := r.ReadByte()
		m.IsDefault = def == 1
		m.AddedBy = readString(r)
		var added int64
		binary.Read(r, binary.LittleEndian, &added)
		if added > 0 {
			m.AddedAt = time.Unix(added, 0).UTC()
		}
		var stmtCount uint16
		binary.Read(r, binary.LittleEndian, &stmtCount)
		m.Permissions = make([]Statement, stmtCount)
		for j := range m.Permissions {
			m.Permissions[j].Actions = readStringList(r)
			m.Permissions[j].Resources = readStringList(r)
			eff, _ := r.ReadByte()
			m.Permissions[j].Effect = map[byte]Effect{1: EffectAllow, 2: EffectDeny}[eff]
		}
		members[i] = m
	}
	return members
}

func encodeSessionConfig(buf *bytes.Buffer, cfg *SessionConfig) {
	binary.Write(buf, binary.LittleEndian, cfg.DecisionCacheTTL)
	binary.Write(buf, binary.LittleEndian, cfg.RistrettoNumCounter)
	binary.Write(buf, binary.LittleEndian, cfg.RistrettoMaxCost)
	binary.Write(buf, binary.LittleEndian, cfg.RistrettoBuffer)
}

func decodeSessionConfig(data []byte) SessionConfig {
	r := bytes.NewReader(data)
	cfg := SessionConfig{}
	binary.Read(r, binary.LittleEndian, &cfg.DecisionCacheTTL)
	binary.Read(r, binary.LittleEndian, &cfg.RistrettoNumCounter)
	binary.Read(r, binary.LittleEndian, &cfg.RistrettoMaxCost)
	binary.Read(r, binary.LittleEndian, &cfg.RistrettoBuffer)
	return cfg
}
