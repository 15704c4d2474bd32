package tenancy

import (
	"fmt"
	"strconv"
	"strings"
)

// DSL Syntax (.tenancy files):
// organization <id> <name> master:<account> [status:<s>] [policies:<a,b>]
// root <id> <org> <name>
// ou <id> <org> <parent> <name> [status:<s>]
// account <id> <org> <parent> <name> [email:<e>] [status:<s>] [tags:k=v,...]
// member <id> <principal> <account> <role> [default] [added-by:<principal>]
// grant <principal> <account> <effect> <actions> [<resources>]
// session <key>=<value>...
//
// grant lines attach an ordered statement to the member matching
// (principal, account); their file order is the statement evaluation order.

type DSLParser struct {
	line int
}

func NewDSLParser() *DSLParser {
	return &DSLParser{}
}

type DSLEncoder struct {
	buf []byte
}

func NewDSLEncoder() *DSLEncoder {
	return &DSLEncoder{buf: make([]byte, 0, 4096)}
}

func (e *DSLEncoder) Encode(cfg *Config) ([]byte, error) {
	e.buf = e.buf[:0]

	for _, org := range cfg.Organizations {
		e.buf = append(e.buf, "organization "...)
		e.buf = append(e.buf, org.ID...)
		e.appendName(org.Name)
		if org.MasterAccountID != "" {
			e.buf = append(e.buf, " master:"...)
			e.buf = append(e.buf, org.MasterAccountID...)
		}
		if org.Status != "" {
			e.buf = append(e.buf, " status:"...)
			e.buf = append(e.buf, org.Status...)
		}
		if len(org.EnabledPolicyTypes) > 0 {
			e.buf = append(e.buf, " policies:"...)
			e.buf = append(e.buf, strings.Join(org.EnabledPolicyTypes, ",")...)
		}
		e.buf = append(e.buf, '\n')
	}

	for _, root := range cfg.Roots {
		e.buf = append(e.buf, "root "...)
		e.buf = append(e.buf, root.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, root.OrganizationID...)
		e.appendName(root.Name)
		e.buf = append(e.buf, '\n')
	}

	for _, ou := range cfg.Units {
		e.buf = append(e.buf, "ou "...)
		e.buf = append(e.buf, ou.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, ou.OrganizationID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, ou.ParentID...)
		e.appendName(ou.Name)
		if ou.Status != "" {
			e.buf = append(e.buf, " status:"...)
			e.buf = append(e.buf, ou.Status...)
		}
		e.buf = append(e.buf, '\n')
	}

	for _, account := range cfg.Accounts {
		e.buf = append(e.buf, "account "...)
		e.buf = append(e.buf, account.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, account.OrganizationID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, account.ParentID...)
		e.appendName(account.Name)
		if account.Email != "" {
			e.buf = append(e.buf, " email:"...)
			e.buf = append(e.buf, account.Email...)
		}
		if account.Status != "" {
			e.buf = append(e.buf, " status:"...)
			e.buf = append(e.buf, account.Status...)
		}
		if len(account.Tags) > 0 {
			e.buf = append(e.buf, " tags:"...)
			first := true
			for k, v := range account.Tags {
				if !first {
					e.buf = append(e.buf, ',')
				}
				first = false
				e.buf = append(e.buf, k...)
				e.buf = append(e.buf, '=')
				e.buf = append(e.buf, v...)
			}
		}
		e.buf = append(e.buf, '\n')
	}

	for _, m := range cfg.Members {
		e.buf = append(e.buf, "member "...)
		e.buf = append(e.buf, m.ID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, m.PrincipalID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, m.AccountID...)
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, m.Role...)
		if m.IsDefault {
			e.buf = append(e.buf, " default"...)
		}
		if m.AddedBy != "" {
			e.buf = append(e.buf, " added-by:"...)
			e.buf = append(e.buf, m.AddedBy...)
		}
		e.buf = append(e.buf, '\n')
		for _, stmt := range m.Permissions {
			e.buf = append(e.buf, "grant "...)
			e.buf = append(e.buf, m.PrincipalID...)
			e.buf = append(e.buf, ' ')
			e.buf = append(e.buf, m.AccountID...)
			e.buf = append(e.buf, ' ')
			e.buf = append(e.buf, stmt.Effect...)
			e.buf = append(e.buf, ' ')
			e.buf = append(e.buf, strings.Join(stmt.Actions, ",")...)
			if len(stmt.Resources) > 0 {
				e.buf = append(e.buf, ' ')
				e.buf = append(e.buf, strings.Join(stmt.Resources, ",")...)
			}
			e.buf = append(e.buf, '\n')
		}
	}

	if cfg.Session != (SessionConfig{}) {
		e.buf = append(e.buf, "session"...)
		var tmp [20]byte
		appendKV := func(key string, v int64) {
			if v != 0 {
				e.buf = append(e.buf, ' ')
				e.buf = append(e.buf, key...)
				e.buf = append(e.buf, '=')
				e.buf = append(e.buf, strconv.AppendInt(tmp[:0], v, 10)...)
			}
		}
		appendKV("cache_ttl", cfg.Session.DecisionCacheTTL)
		appendKV("counters", cfg.Session.RistrettoNumCounter)
		appendKV("max_cost", cfg.Session.RistrettoMaxCost)
		appendKV("buffer", cfg.Session.RistrettoBuffer)
		e.buf = append(e.buf, '\n')
	}

	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

func (e *DSLEncoder) appendName(name string) {
	e.buf = append(e.buf, ' ', '"')
	e.buf = append(e.buf, name...)
	e.buf = append(e.buf, '"')
}

func (p *DSLParser) Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Version:       1,
		Organizations: make([]*Organization, 0, 4),
		Roots:         make([]*OrganizationRoot, 0, 4),
		Units:         make([]*OrganizationalUnit, 0, 8),
		Accounts:      make([]*Account, 0, 16),
		Members:       make([]*AccountMember, 0, 16),
	}

	p.line = 0
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			p.line++
			line := data[start:i]
			start = i + 1

			for len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
				line = line[1:]
			}
			for len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t' || line[len(line)-1] == '\r') {
				line = line[:len(line)-1]
			}

			if len(line) == 0 || line[0] == '#' {
				continue
			}

			parts := splitLineBytes(line)
			if len(parts) == 0 {
				continue
			}

			var err error
			switch parts[0] {
			case "organization":
				err = p.parseOrganization(cfg, parts[1:])
			case "root":
				err = p.parseRoot(cfg, parts[1:])
			case "ou":
				err = p.parseOU(cfg, parts[1:])
			case "account":
				err = p.parseAccount(cfg, parts[1:])
			case "member":
				err = p.parseMember(cfg, parts[1:])
			case "grant":
				err = p.parseGrant(cfg, parts[1:])
			case "session":
				err = p.parseSession(cfg, parts[1:])
			default:
				err = fmt.Errorf("unknown directive: %s", parts[0])
			}
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", p.line, err)
			}
		}
	}

	return cfg, nil
}

func splitLineBytes(line []byte) []string {
	parts := make([]string, 0, 8)
	var start int
	inQuote := false
	i := 0

	for i < len(line) {
		ch := line[i]
		if ch == '"' {
			if inQuote {
				parts = append(parts, string(line[start:i]))
				start = i + 1
				inQuote = false
			} else {
				start = i + 1
				inQuote = true
			}
		} else if (ch == ' ' || ch == '\t') && !inQuote {
			if i > start {
				parts = append(parts, string(line[start:i]))
			}
			start = i + 1
		}
		i++
	}

	if start < len(line) {
		parts = append(parts, string(line[start:]))
	}

	return parts
}

func (p *DSLParser) parseOrganization(cfg *Config, parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("organization requires: <id> <name> [master:<account>] [status:<s>] [policies:<a,b>]")
	}
	org := &Organization{ID: parts[0], Name: parts[1], Status: OrgActive}
	for _, opt := range parts[2:] {
		switch {
		case strings.HasPrefix(opt, "master:"):
			org.MasterAccountID = opt[7:]
		case strings.HasPrefix(opt, "status:"):
			org.Status = OrgStatus(opt[7:])
		case strings.HasPrefix(opt, "policies:"):
			org.EnabledPolicyTypes = strings.Split(opt[9:], ",")
		}
	}
	cfg.Organizations = append(cfg.Organizations, org)
	return nil
}

func (p *DSLParser) parseRoot(cfg *Config, parts []string) error {
	if len(parts) < 3 {
		return fmt.Errorf("root requires: <id> <org> <name>")
	}
	cfg.Roots = append(cfg.Roots, &OrganizationRoot{ID: parts[0], OrganizationID: parts[1], Name: parts[2]})
	return nil
}

func (p *DSLParser) parseOU(cfg *Config, parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("ou requires: <id> <org> <parent> <name> [status:<s>]")
	}
	ou := &OrganizationalUnit{ID: parts[0], OrganizationID: parts[1], ParentID: parts[2], Name: parts[3], Status: OUActive}
	for _, opt := range parts[4:] {
		if strings.HasPrefix(opt, "status:") {
			ou.Status = OUStatus(opt[7:])
		}
	}
	cfg.Units = append(cfg.Units, ou)
	return nil
}

func (p *DSLParser) parseAccount(cfg *Config, parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("account requires: <id> <org> <parent> <name> [email:<e>] [status:<s>] [tags:k=v,...]")
	}
	account := &Account{ID: parts[0], OrganizationID: parts[1], ParentID: parts[2], Name: parts[3], Status: AccountActive}
	for _, opt := range parts[4:] {
		switch {
		case strings.HasPrefix(opt, "email:"):
			account.Email = opt[6:]
		case strings.HasPrefix(opt, "status:"):
			account.Status = AccountStatus(opt[7:])
		case strings.HasPrefix(opt, "tags:"):
			account.Tags = make(map[string]string)
			for _, kv := range strings.Split(opt[5:], ",") {
				if idx := strings.Index(kv, "="); idx != -1 {
					account.Tags[kv[:idx]] = kv[idx+1:]
				}
			}
		}
	}
	cfg.Accounts = append(cfg.Accounts, account)
	return nil
}

func (p *DSLParser) parseMember(cfg *Config, parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("member requires: <id> <principal> <account> <role> [default] [added-by:<principal>]")
	}
	m := &AccountMember{
		ID:          parts[0],
		PrincipalID: parts[1],
		AccountID:   parts[2],
		Role:        Role(parts[3]),
		Permissions: []Statement{},
	}
	for _, opt := range parts[4:] {
		switch {
		case opt == "default":
			m.IsDefault = true
		case strings.HasPrefix(opt, "added-by:"):
			m.AddedBy = opt[9:]
		}
	}
	cfg.Members = append(cfg.Members, m)
	return nil
}

func (p *DSLParser) parseGrant(cfg *Config, parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("grant requires: <principal> <account> <effect> <actions> [<resources>]")
	}
	stmtText := parts[2] + " " + parts[3]
	if len(parts) >= 5 {
		stmtText += " on " + parts[4]
	}
	stmt, err := ParseStatement(stmtText)
	if err != nil {
		return err
	}
	for _, m := range cfg.Members {
		if m.PrincipalID == parts[0] && m.AccountID == parts[1] {
			m.Permissions = append(m.Permissions, stmt)
			return nil
		}
	}
	return fmt.Errorf("grant references unknown member (%s, %s); declare the member first", parts[0], parts[1])
}

func (p *DSLParser) parseSession(cfg *Config, parts []string) error {
	for _, kv := range parts {
		idx := strings.Index(kv, "=")
		if idx == -1 {
			continue
		}
		key, val := kv[:idx], kv[idx+1:]
		switch key {
		case "cache_ttl":
			cfg.Session.DecisionCacheTTL, _ = strconv.ParseInt(val, 10, 64)
		case "counters":
			cfg.Session.RistrettoNumCounter, _ = strconv.ParseInt(val, 10, 64)
		case "max_cost":
			cfg.Session.RistrettoMaxCost, _ = strconv.ParseInt(val, 10, 64)
		case "buffer":
			cfg.Session.RistrettoBuffer, _ = strconv.ParseInt(val, 10, 64)
		}
	}
	return nil
}
