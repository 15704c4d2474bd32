package utils

import "testing"

func TestMatchPatternLiteral(t *testing.T) {
	if !MatchPattern("ec2:RunInstances", "ec2:RunInstances") {
		t.Fatalf("expected literal match")
	}
	if MatchPattern("ec2:RunInstances", "ec2:RunInstance") {
		t.Fatalf("expected no match for truncated pattern")
	}
	if MatchPattern("ec2:RunInstance", "ec2:RunInstances") {
		t.Fatalf("pattern longer than value must not match")
	}
}

func TestMatchPatternWildcard(t *testing.T) {
	cases := []struct {
		value   string
		pattern string
		want    bool
	}{
		{"ec2:RunInstances", "*", true},
		{"ec2:RunInstances", "ec2:*", true},
		{"s3:GetObject", "ec2:*", false},
		{"ec2:DescribeInstances", "*:Describe*", true},
		{"ec2:RunInstances", "*:Describe*", false},
		{"arn:bhoomi:s3:::my-bucket", "arn:bhoomi:s3:::*", true},
		{"arn:bhoomi:s3:::my-bucket/key", "arn:bhoomi:s3:::my-bucket", false},
		{"abc", "a*c", true},
		{"ac", "a*c", true},
		{"ab", "a*c", false},
		{"", "*", true},
		{"", "", true},
		{"x", "", false},
		{"aXbYc", "a*b*c", true},
		{"aXcYb", "a*b*c", false},
	}
	for _, tc := range cases {
		if got := MatchPattern(tc.value, tc.pattern); got != tc.want {
			t.Fatalf("MatchPattern(%q, %q) = %v, want %v", tc.value, tc.pattern, got, tc.want)
		}
	}
}

func TestMatchPatternRegexMetacharactersAreLiteral(t *testing.T) {
	// '.' and friends must not behave like regex operators.
	if MatchPattern("abc", "a.c") {
		t.Fatalf("'.' must be literal, not any-character")
	}
	if !MatchPattern("a.c", "a.c") {
		t.Fatalf("literal '.' should match itself")
	}
	if MatchPattern("aaa", "a+") {
		t.Fatalf("'+' must be literal")
	}
	if !MatchPattern("svc(prod):read", "svc(prod):*") {
		t.Fatalf("parentheses should be literal")
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"s3:Get*", "s3:List*"}
	if !MatchAny("s3:GetObject", patterns) {
		t.Fatalf("expected match against first pattern")
	}
	if MatchAny("s3:PutObject", patterns) {
		t.Fatalf("expected no match")
	}
	if MatchAny("anything", nil) {
		t.Fatalf("empty pattern set must not match")
	}
}
