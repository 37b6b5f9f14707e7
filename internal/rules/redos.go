package rules

import "strings"

// MaxPatternLength caps user-supplied regex patterns.
const MaxPatternLength = 100

var broadClasses = map[string]bool{".": true, `\w`: true, `\W`: true, `\s`: true, `\S`: true, `\d`: true, `\D`: true}

type groupFrame struct {
	start   int
	overlap bool // this group or one nested in it has overlapping alternatives
}

// IsSafePattern is a conservative filter for patterns known to backtrack
// catastrophically. A false result means the pattern must not be evaluated.
//
// A repeated group is rejected when anything inside it, at any depth, is
// itself quantified, or when it contains alternatives that can match the
// same prefix: (a+)+, ((a+))*, (a?)+, (a|ab)+, ((a|aa))+.
func IsSafePattern(pattern string) bool {
	if len(pattern) > MaxPatternLength {
		return false
	}
	var stack []groupFrame
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '[':
			i = classEnd(pattern, i)
		case '(':
			stack = append(stack, groupFrame{start: i})
		case ')':
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			body := groupContent(pattern[f.start+1 : i])
			if overlapping(splitAlternatives(body)) {
				f.overlap = true
			}
			if quantifiedAt(pattern, i+1) && (f.overlap || hasQuantifier(body)) {
				return false
			}
			if f.overlap && len(stack) > 0 {
				stack[len(stack)-1].overlap = true
			}
		}
	}
	return true
}

// classEnd returns the index of the ']' closing the class opened at i.
func classEnd(p string, i int) int {
	j := i + 1
	if j < len(p) && p[j] == '^' {
		j++
	}
	if j < len(p) && p[j] == ']' {
		j++
	}
	for ; j < len(p); j++ {
		switch {
		case p[j] == '\\':
			j++
		case p[j] == '[' && j+1 < len(p) && p[j+1] == ':':
			if k := strings.Index(p[j+2:], ":]"); k >= 0 {
				j += k + 3
			}
		case p[j] == ']':
			return j
		}
	}
	return len(p) - 1
}

// groupContent drops a leading group modifier such as ?:, ?i: or ?P<name>.
// Flag-only groups like (?i) have no content.
func groupContent(body string) string {
	if !strings.HasPrefix(body, "?") {
		return body
	}
	if strings.HasPrefix(body, "?P<") || strings.HasPrefix(body, "?<") {
		if k := strings.IndexByte(body, '>'); k >= 0 {
			return body[k+1:]
		}
		return ""
	}
	if k := strings.IndexByte(body, ':'); k >= 0 {
		return body[k+1:]
	}
	return ""
}

func quantifiedAt(p string, k int) bool {
	if k >= len(p) {
		return false
	}
	switch p[k] {
	case '*', '+':
		return true
	case '{':
		return k+1 < len(p) && isDigit(p[k+1])
	}
	return false
}

// hasQuantifier reports whether s repeats or makes optional any part of
// itself, nested groups included.
func hasQuantifier(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '[':
			i = classEnd(s, i)
		case '*', '+':
			return true
		case '?':
			if i == 0 || s[i-1] != '(' {
				return true
			}
		case '{':
			if i+1 < len(s) && isDigit(s[i+1]) {
				return true
			}
		}
	}
	return false
}

// splitAlternatives splits s on '|' outside nested groups and classes.
func splitAlternatives(s string) []string {
	var (
		out   []string
		start int
		depth int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '[':
			i = classEnd(s, i)
		case '(':
			depth++
		case ')':
			depth--
		case '|':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// overlapping reports whether two alternatives can match the same prefix.
func overlapping(alts []string) bool {
	if len(alts) < 2 {
		return false
	}
	for i := range alts {
		if alts[i] == "" || broadClasses[alts[i]] {
			return true
		}
		for j := range alts {
			if i != j && strings.HasPrefix(alts[j], alts[i]) {
				return true
			}
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
