package utils

// MatchPattern reports whether value matches pattern as a whole string.
// The only wildcard is '*', which matches any sequence of characters
// (including none). Every other character is literal: '.', '+', '(' and
// friends carry no special meaning, so IAM-style patterns such as
// "ec2:Describe*" or "arn:bhoomi:s3:::my-bucket" behave predictably.
// Matching never degrades to a substring test; "s3:Get" does not match
// "s3:GetObject".
func MatchPattern(value, pattern string) bool {
	if pattern == "*" {
		return true
	}

	vIndex, pIndex := 0, 0
	star, anchor := -1, 0

	for vIndex < len(value) {
		switch {
		case pIndex < len(pattern) && pattern[pIndex] == '*':
			// Remember the star so a later mismatch can widen its span.
			star = pIndex
			anchor = vIndex
			pIndex++
		case pIndex < len(pattern) && pattern[pIndex] == value[vIndex]:
			pIndex++
			vIndex++
		case star >= 0:
			// Backtrack: let the last '*' absorb one more character.
			anchor++
			vIndex = anchor
			pIndex = star + 1
		default:
			return false
		}
	}

	// Trailing stars match the empty tail.
	for pIndex < len(pattern) && pattern[pIndex] == '*' {
		pIndex++
	}
	return pIndex == len(pattern)
}

// MatchAny reports whether value matches at least one of the patterns.
func MatchAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if MatchPattern(value, p) {
			return true
		}
	}
	return false
}
