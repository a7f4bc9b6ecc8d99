// internal/browser/locator/locator.go
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy is the closed set of ways a Locator can address an element.
type Strategy int

const (
	StrategyID Strategy = iota
	StrategyCSS
	StrategyXPath
	StrategyTextContains
)

func (s Strategy) String() string {
	switch s {
	case StrategyID:
		return "id"
	case StrategyCSS:
		return "css"
	case StrategyXPath:
		return "xpath"
	case StrategyTextContains:
		return "text"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Locator identifies a DOM element by one strategy. The zero value is not useful;
// build one with ByID, ByCSS, ByXPath or ByText.
type Locator struct {
	Strategy Strategy
	Value    string
	// Tag narrows a TextContains lookup to one element name. Empty means any element.
	Tag string
}

func ByID(id string) Locator { return Locator{Strategy: StrategyID, Value: id} }
func ByCSS(sel string) Locator { return Locator{Strategy: StrategyCSS, Value: sel} }
func ByXPath(expr string) Locator { return Locator{Strategy: StrategyXPath, Value: expr} }
func ByText(tag, text string) Locator {
	return Locator{Strategy: StrategyTextContains, Value: text, Tag: tag}
}

// String renders the locator in the same "strategy:value" form Parse accepts.
func (l Locator) String() string {
	if l.Strategy == StrategyTextContains && l.Tag != "" && l.Tag != "*" {
		return fmt.Sprintf("text(%s):%s", l.Tag, l.Value)
	}
	return l.Strategy.String() + ":" + l.Value
}

// XPath returns the XPath expression equivalent of a TextContains locator.
// For XPath locators it returns the expression unchanged.
func (l Locator) XPath() string {
	switch l.Strategy {
	case StrategyXPath:
		return l.Value
	case StrategyTextContains:
		tag := l.Tag
		if tag == "" {
			tag = "*"
		}
		return fmt.Sprintf("//%s[contains(text(),%s)]", tag, XPathLiteral(l.Value))
	default:
		return ""
	}
}

// XPathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is split with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}

// ErrEmptySet is returned when a Set would hold no locators.
var ErrEmptySet = errors.New("locator set must contain at least one locator")

// Set is an ordered list of alternative locators for the same logical element.
// Order encodes preference.
type Set struct {
	locators []Locator
}

// NewSet builds a Set, rejecting an empty list.
func NewSet(locators ...Locator) (Set, error) {
	if len(locators) == 0 {
		return Set{}, ErrEmptySet
	}
	cp := make([]Locator, len(locators))
	copy(cp, locators)
	return Set{locators: cp}, nil
}

// MustSet is NewSet for package-level declarations.
func MustSet(locators ...Locator) Set {
	s, err := NewSet(locators...)
	if err != nil {
		panic(err)
	}
	return s
}

// Locators returns a copy of the set's members in preference order.
func (s Set) Locators() []Locator {
	out := make([]Locator, len(s.locators))
	copy(out, s.locators)
	return out
}

func (s Set) Len() int { return len(s.locators) }

func (s Set) String() string {
	parts := make([]string, len(s.locators))
	for i, l := range s.locators {
		parts[i] = l.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Parse reads a locator from its "strategy:value" form. Recognised prefixes are
// id, css, xpath and text; text may carry a tag as text(button):Log in.
// A value without a known prefix is treated as CSS, or XPath if it starts with "/".
func Parse(raw string) (Locator, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	prefix, value, found := strings.Cut(s, ":")
	if found {
		value = strings.TrimSpace(value)
		p := strings.ToLower(strings.TrimSpace(prefix))
		switch {
		case p == "id":
			return requireValue(ByID(value), raw)
		case p == "css":
			return requireValue(ByCSS(value), raw)
		case p == "xpath":
			return requireValue(ByXPath(value), raw)
		case p == "text":
			return requireValue(ByText("", value), raw)
		case strings.HasPrefix(p, "text(") && strings.HasSuffix(p, ")"):
			tag := strings.TrimSpace(p[len("text(") : len(p)-1])
			return requireValue(ByText(tag, value), raw)
		}
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") {
		return ByXPath(s), nil
	}
	return ByCSS(s), nil
}

func requireValue(l Locator, raw string) (Locator, error) {
	if l.Value == "" {
		return Locator{}, fmt.Errorf("locator %q has no value", raw)
	}
	return l, nil
}

// ParseSet parses every entry and builds a Set from them.
func ParseSet(raw []string) (Set, error) {
	locs := make([]Locator, 0, len(raw))
	for _, r := range raw {
		l, err := Parse(r)
		if err != nil {
			return Set{}, err
		}
		locs = append(locs, l)
	}
	return NewSet(locs...)
}
