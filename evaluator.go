package tenancy

import (
	"fmt"
	"time"

	"github.com/prashantrr143/bhoomi-tenancy/utils"
)

// ============================================================================
// POLICY EVALUATION
// ============================================================================

// Verdict is the outcome of evaluating a statement list for one request.
type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictDeny    Verdict = "deny"
	VerdictNoMatch Verdict = "no_match"
)

// Decision captures an evaluation outcome together with the statement that
// produced it, for diagnostics and the Explain/check paths.
type Decision struct {
	Verdict      Verdict   `json:"verdict"`
	MatchedIndex int       `json:"matched_index"` // -1 when no statement matched
	Reason       string    `json:"reason"`
	Trace        []string  `json:"trace,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Allowed reports whether the decision authorizes the request. Anything
// other than an explicit Allow, including NoMatch, is not authorized.
func (d *Decision) Allowed() bool {
	return d != nil && d.Verdict == VerdictAllow
}

// Evaluate walks statements in the order supplied and returns the effect of
// the first statement whose action patterns match the action. No resource
// constraint is applied: a statement whose action matches is taken whole.
// If nothing matches the result is VerdictNoMatch, which callers must treat
// as not authorized.
//
// First match wins in both directions: an early Allow is never overridden
// by a later Deny, and an early Deny is final. This short-circuit behavior
// is relied on by stored permission lists and must not be replaced with a
// deny-overrides scan.
func Evaluate(statements []Statement, action string) Verdict {
	verdict, _ := evaluate(statements, action, "", false)
	return verdict
}

// EvaluateResource is Evaluate with a resource constraint: a statement only
// matches when one of its action patterns matches action and one of its
// resource patterns matches resource.
func EvaluateResource(statements []Statement, action, resource string) Verdict {
	verdict, _ := evaluate(statements, action, resource, true)
	return verdict
}

// Explain evaluates like Evaluate/EvaluateResource but returns the full
// decision with the index of the deciding statement and a per-statement
// trace. Pass at most one resource.
func Explain(statements []Statement, action string, resource ...string) *Decision {
	withResource := len(resource) > 0
	res := ""
	if withResource {
		res = resource[0]
	}

	d := &Decision{
		Verdict:      VerdictNoMatch,
		MatchedIndex: -1,
		Trace:        make([]string, 0, len(statements)),
		Timestamp:    time.Now(),
	}
	for i, stmt := range statements {
		if !matchesAction(stmt, action) {
			d.Trace = append(d.Trace, fmt.Sprintf("statement %d: action %q not covered", i, action))
			continue
		}
		if withResource && !matchesResource(stmt, res) {
			d.Trace = append(d.Trace, fmt.Sprintf("statement %d: resource %q not covered", i, res))
			continue
		}
		d.MatchedIndex = i
		if stmt.Effect == EffectDeny {
			d.Verdict = VerdictDeny
			d.Reason = fmt.Sprintf("denied by statement %d", i)
			d.Trace = append(d.Trace, fmt.Sprintf("statement %d: DENY, evaluation stops", i))
		} else {
			d.Verdict = VerdictAllow
			d.Reason = fmt.Sprintf("allowed by statement %d", i)
			d.Trace = append(d.Trace, fmt.Sprintf("statement %d: ALLOW, evaluation stops", i))
		}
		return d
	}
	d.Reason = "no statement matched"
	return d
}

func evaluate(statements []Statement, action, resource string, withResource bool) (Verdict, int) {
	for i, stmt := range statements {
		if !matchesAction(stmt, action) {
			continue
		}
		if withResource && !matchesResource(stmt, resource) {
			continue
		}
		if stmt.Effect == EffectDeny {
			return VerdictDeny, i
		}
		return VerdictAllow, i
	}
	return VerdictNoMatch, -1
}

func matchesAction(stmt Statement, action string) bool {
	for _, p := range stmt.Actions {
		if p == action || p == "*" {
			return true
		}
		if utils.MatchPattern(action, p) {
			return true
		}
	}
	return false
}

func matchesResource(stmt Statement, resource string) bool {
	for _, p := range stmt.Resources {
		if p == resource || p == "*" {
			return true
		}
		if utils.MatchPattern(resource, p) {
			return true
		}
	}
	return false
}
