package search

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchExpr is an FTS5 match expression. The zero value matches every record.
type MatchExpr string

// MatchAll matches every record; callers skip the full-text join for it
const MatchAll MatchExpr = ""

// IsAll reports whether the expression matches everything
func (m MatchExpr) IsAll() bool {
	return m == MatchAll
}

func (m MatchExpr) String() string {
	return string(m)
}

// minPrefixLen is the shortest term that gets a prefix wildcard
const minPrefixLen = 2

// ParsedQuery is a sanitized free-text query split into clauses
type ParsedQuery struct {
	// Exact phrases, from "double quoted" input
	Phrases []string
	// Free-text terms
	Terms []string
	// Original query string
	Raw string
}

// QueryParser turns raw user input into match clauses
type QueryParser struct{}

// NewQueryParser creates a new query parser
func NewQueryParser() *QueryParser {
	return &QueryParser{}
}

// Parse sanitizes queryStr and splits it into phrases and terms. It never
// fails: input that sanitizes to nothing yields an empty query.
func (p *QueryParser) Parse(queryStr string) *ParsedQuery {
	query := &ParsedQuery{
		Phrases: make([]string, 0),
		Terms:   make([]string, 0),
		Raw:     queryStr,
	}

	clean := sanitize(queryStr)

	// Split on quotes: odd segments are inside a phrase. A trailing unbalanced
	// quote leaves its text as plain terms.
	segments := strings.Split(clean, `"`)
	balanced := len(segments)%2 == 1
	for i, segment := range segments {
		inPhrase := i%2 == 1 && (balanced || i < len(segments)-1)
		if inPhrase {
			if phrase := strings.Join(strings.Fields(segment), " "); hasWordRune(phrase) {
				query.Phrases = append(query.Phrases, phrase)
			}
			continue
		}
		for _, field := range strings.Fields(segment) {
			if term := strings.Trim(field, `-'`); hasWordRune(term) {
				query.Terms = append(query.Terms, term)
			}
		}
	}

	return query
}

// sanitize replaces every rune outside letters, combining marks, digits, double
// quotes, hyphens and apostrophes with a space
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r):
			return r
		case r == '"', r == '-', r == '\'':
			return r
		default:
			return ' '
		}
	}, s)
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the query has no clauses
func (q *ParsedQuery) IsEmpty() bool {
	return len(q.Phrases) == 0 && len(q.Terms) == 0
}

// ToMatch renders the query as a conjunctive FTS5 expression. Every clause is
// a quoted string so FTS5 operators in user input stay inert.
func (q *ParsedQuery) ToMatch() MatchExpr {
	if q.IsEmpty() {
		return MatchAll
	}

	clauses := make([]string, 0, len(q.Phrases)+len(q.Terms))
	for _, phrase := range q.Phrases {
		clauses = append(clauses, quote(phrase))
	}
	for _, term := range q.Terms {
		if utf8.RuneCountInString(term) >= minPrefixLen {
			clauses = append(clauses, quote(term)+"*")
		} else {
			clauses = append(clauses, quote(term))
		}
	}
	return MatchExpr(strings.Join(clauses, " AND "))
}

func quote(s string) string {
	return `"` + s + `"`
}

// String returns a human-readable representation of the query
func (q *ParsedQuery) String() string {
	parts := make([]string, 0, 2)
	if len(q.Phrases) > 0 {
		parts = append(parts, fmt.Sprintf("phrases:%q", q.Phrases))
	}
	if len(q.Terms) > 0 {
		parts = append(parts, fmt.Sprintf("terms:%v", q.Terms))
	}
	return strings.Join(parts, ", ")
}

// BuildMatchExpression sanitizes a raw query and renders it as a match expression
//
//	slack notification     -> "slack"* AND "notification"*
//	"slack notification"   -> "slack notification"
//	a slack                -> "a" AND "slack"*
//	(empty or symbols)     -> MatchAll
func BuildMatchExpression(raw string) MatchExpr {
	return NewQueryParser().Parse(raw).ToMatch()
}
