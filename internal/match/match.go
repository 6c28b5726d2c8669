// Package match holds the predicates used to recognise expected responses
// in the last received record.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/vburojevic/dbgwire/internal/wire"
)

// Matcher decides whether a record satisfies an expectation.
type Matcher interface {
	Match(record string) bool
	String() string
}

type contains string

// Contains matches records containing s.
func Contains(s string) Matcher { return contains(s) }

func (c contains) Match(record string) bool { return strings.Contains(record, string(c)) }
func (c contains) String() string           { return fmt.Sprintf("%q", string(c)) }

type pattern struct{ re *regexp.Regexp }

// Regexp matches records against re.
func Regexp(re *regexp.Regexp) Matcher { return pattern{re: re} }

func (p pattern) Match(record string) bool { return p.re.MatchString(record) }
func (p pattern) String() string           { return "~" + p.re.String() }

type not struct{ m Matcher }

// Not inverts m.
func Not(m Matcher) Matcher { return not{m: m} }

func (n not) Match(record string) bool { return !n.m.Match(record) }
func (n not) String() string           { return "!" + n.m.String() }

type anyOf []Matcher

// AnyOf matches when at least one alternative matches.
func AnyOf(ms ...Matcher) Matcher { return anyOf(ms) }

func (a anyOf) Match(record string) bool {
	return lo.SomeBy([]Matcher(a), func(m Matcher) bool { return m.Match(record) })
}

func (a anyOf) String() string { return join(a, " or ") }

type allOf []Matcher

// AllOf matches when every matcher matches (AND logic).
func AllOf(ms ...Matcher) Matcher { return allOf(ms) }

func (a allOf) Match(record string) bool {
	return lo.EveryBy([]Matcher(a), func(m Matcher) bool { return m.Match(record) })
}

func (a allOf) String() string { return join(a, " and ") }

type decoded struct{ m Matcher }

// Decoded applies m to the percent-decoded record.
func Decoded(m Matcher) Matcher { return decoded{m: m} }

func (d decoded) Match(record string) bool { return d.m.Match(wire.UnquotePlus(record)) }
func (d decoded) String() string           { return "decoded(" + d.m.String() + ")" }

// RawOrDecoded tries the raw record first, then its percent-decoded form.
func RawOrDecoded(m Matcher) Matcher {
	return AnyOf(m, Decoded(m))
}

// Func adapts a predicate.
func Func(name string, fn func(string) bool) Matcher { return funcMatcher{name: name, fn: fn} }

type funcMatcher struct {
	name string
	fn   func(string) bool
}

func (f funcMatcher) Match(record string) bool { return f.fn(record) }
func (f funcMatcher) String() string           { return f.name }

// Strings builds substring matchers for each expected value.
func Strings(expected ...string) []Matcher {
	return lo.Map(expected, func(s string, _ int) Matcher { return Contains(s) })
}

// Parse turns an expectation expression into a matcher.
// Supported forms: "~regexp", "!expr" (negation), anything else is a
// substring. A leading backslash escapes the operator character.
func Parse(expr string) (Matcher, error) {
	switch {
	case expr == "":
		return nil, fmt.Errorf("empty expectation")
	case strings.HasPrefix(expr, `\`):
		return Contains(expr[1:]), nil
	case strings.HasPrefix(expr, "!"):
		inner, err := Parse(expr[1:])
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case strings.HasPrefix(expr, "~"):
		re, err := regexp.Compile(expr[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid regex in expectation '%s': %w", expr, err)
		}
		return Regexp(re), nil
	}
	return Contains(expr), nil
}

// ParseAll parses every expression.
func ParseAll(exprs []string) ([]Matcher, error) {
	out := make([]Matcher, 0, len(exprs))
	for _, e := range exprs {
		m, err := Parse(e)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func join(ms []Matcher, sep string) string {
	return strings.Join(lo.Map(ms, func(m Matcher, _ int) string { return m.String() }), sep)
}

type anyLine struct{ m Matcher }

// AnyLine matches when a single line of a multi-record chunk satisfies m.
func AnyLine(m Matcher) Matcher { return anyLine{m: m} }

func (a anyLine) Match(record string) bool {
	_, ok := Line(record, a.m)
	return ok
}

func (a anyLine) String() string { return a.m.String() }

// Line returns the first line of record accepted by m, without its
// delimiter.
func Line(record string, m Matcher) (string, bool) {
	return lo.Find(lo.Map(wire.Lines(record), func(r wire.Record, _ int) string { return r.String() }), m.Match)
}
