package tenancy

import (
	"testing"
)

func TestEvaluateEmptyStatements(t *testing.T) {
	if v := Evaluate(nil, "ec2:StartInstance"); v != VerdictNoMatch {
		t.Fatalf("expected no_match for empty statements, got %s", v)
	}
	if v := Evaluate([]Statement{}, "ec2:StartInstance"); v != VerdictNoMatch {
		t.Fatalf("expected no_match for empty statements, got %s", v)
	}
	d := Explain(nil, "ec2:StartInstance")
	if d.Allowed() {
		t.Fatalf("no_match must not authorize")
	}
	if d.MatchedIndex != -1 {
		t.Fatalf("expected matched index -1, got %d", d.MatchedIndex)
	}
}

func TestEvaluateWildcardAction(t *testing.T) {
	statements := []Statement{
		{Effect: EffectAllow, Actions: []string{"ec2:*"}},
	}
	if v := Evaluate(statements, "ec2:StartInstance"); v != VerdictAllow {
		t.Fatalf("ec2:* should cover ec2:StartInstance, got %s", v)
	}
	if v := Evaluate(statements, "s3:GetObject"); v != VerdictNoMatch {
		t.Fatalf("ec2:* must not cover s3:GetObject, got %s", v)
	}
	if v := Evaluate(statements, "ec2:"); v != VerdictAllow {
		t.Fatalf("ec2:* should cover the empty suffix, got %s", v)
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	denyFirst := []Statement{
		{Effect: EffectDeny, Actions: []string{"ec2:*"}},
		{Effect: EffectAllow, Actions: []string{"ec2:StartInstance"}},
	}
	if v := Evaluate(denyFirst, "ec2:StartInstance"); v != VerdictDeny {
		t.Fatalf("early deny must be final, got %s", v)
	}

	allowFirst := []Statement{
		{Effect: EffectAllow, Actions: []string{"ec2:StartInstance"}},
		{Effect: EffectDeny, Actions: []string{"ec2:*"}},
	}
	if v := Evaluate(allowFirst, "ec2:StartInstance"); v != VerdictAllow {
		t.Fatalf("early allow must not be overridden by later deny, got %s", v)
	}
	// the broader deny still applies to actions the allow does not cover
	if v := Evaluate(allowFirst, "ec2:TerminateInstance"); v != VerdictDeny {
		t.Fatalf("later deny should catch uncovered actions, got %s", v)
	}
}

func TestEvaluateResource(t *testing.T) {
	statements := []Statement{
		{Effect: EffectDeny, Actions: []string{"s3:*"}, Resources: []string{"arn:bhoomi:s3:::audit-*"}},
		{Effect: EffectAllow, Actions: []string{"s3:GetObject"}, Resources: []string{"arn:bhoomi:s3:::my-bucket"}},
	}
	if v := EvaluateResource(statements, "s3:GetObject", "arn:bhoomi:s3:::my-bucket"); v != VerdictAllow {
		t.Fatalf("expected allow on my-bucket, got %s", v)
	}
	if v := EvaluateResource(statements, "s3:GetObject", "arn:bhoomi:s3:::audit-logs"); v != VerdictDeny {
		t.Fatalf("expected deny on audit-logs, got %s", v)
	}
	if v := EvaluateResource(statements, "s3:GetObject", "arn:bhoomi:s3:::other"); v != VerdictNoMatch {
		t.Fatalf("expected no_match on uncovered resource, got %s", v)
	}
}

func TestEvaluateWithoutResourceIgnoresResourcePatterns(t *testing.T) {
	// Evaluate takes a statement whole when its action matches, even if the
	// statement carries resource patterns.
	statements := []Statement{
		{Effect: EffectAllow, Actions: []string{"s3:GetObject"}, Resources: []string{"arn:bhoomi:s3:::my-bucket"}},
	}
	if v := Evaluate(statements, "s3:GetObject"); v != VerdictAllow {
		t.Fatalf("resource-less evaluation should match on action alone, got %s", v)
	}
}

func TestEvaluateMetacharactersAreLiteral(t *testing.T) {
	statements := []Statement{
		{Effect: EffectAllow, Actions: []string{"ec2:St.rt"}},
	}
	if v := Evaluate(statements, "ec2:Start"); v != VerdictNoMatch {
		t.Fatalf("'.' must not act as a wildcard, got %s", v)
	}
	if v := Evaluate(statements, "ec2:St.rt"); v != VerdictAllow {
		t.Fatalf("'.' should match itself literally, got %s", v)
	}
}

func TestExplainReportsDecidingStatement(t *testing.T) {
	statements := []Statement{
		{Effect: EffectAllow, Actions: []string{"s3:List*"}},
		{Effect: EffectDeny, Actions: []string{"s3:*"}},
		{Effect: EffectAllow, Actions: []string{"*"}},
	}
	d := Explain(statements, "s3:PutObject")
	if d.Verdict != VerdictDeny {
		t.Fatalf("expected deny, got %s", d.Verdict)
	}
	if d.MatchedIndex != 1 {
		t.Fatalf("expected statement 1 to decide, got %d", d.MatchedIndex)
	}
	if d.Reason == "" {
		t.Fatalf("expected a reason")
	}
	// one trace line for the skipped statement, one for the decision
	if len(d.Trace) != 2 {
		t.Fatalf("expected 2 trace lines, got %d: %v", len(d.Trace), d.Trace)
	}

	d = Explain(statements, "iam:CreateUser")
	if d.Verdict != VerdictAllow || d.MatchedIndex != 2 {
		t.Fatalf("expected catch-all allow at index 2, got %s at %d", d.Verdict, d.MatchedIndex)
	}
}
