// Package allowlist decides which services and websites the facade may
// expose at all.
package allowlist

import (
	"fmt"
	"path"
	"strings"
)

// Filter is consulted once per candidate record. Implementations must be
// pure predicates, safe for concurrent use.
type Filter interface {
	ServiceAllowed(name string) bool
	WebsiteAllowed(name string) bool
}

// Rules are the raw allow-list entries. Entries match case-insensitively and
// may use shell patterns: "*", "?" and "[...]". Unlike file globs, "*" and
// "?" also match "/", which shows up in display names such as
// "TCP/IP NetBIOS Helper".
type Rules struct {
	Services []string `yaml:"services"`
	Websites []string `yaml:"websites"`
}

// List is a compiled, immutable allow-list. The zero value denies everything.
type List struct {
	services []string
	websites []string
}

// Compile validates every pattern in r.
func Compile(r Rules) (*List, error) {
	services, err := compile("services", r.Services)
	if err != nil {
		return nil, err
	}
	websites, err := compile("websites", r.Websites)
	if err != nil {
		return nil, err
	}
	return &List{services: services, websites: websites}, nil
}

// MustCompile is like Compile but panics on a bad pattern.
func MustCompile(r Rules) *List {
	l, err := Compile(r)
	if err != nil {
		panic(err)
	}
	return l
}

func compile(section string, entries []string) ([]string, error) {
	patterns := make([]string, 0, len(entries))
	for _, e := range entries {
		p := fold(strings.TrimSpace(e))
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("allowlist: %s entry %q: %w", section, e, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func (l *List) ServiceAllowed(name string) bool {
	return l != nil && matchAny(l.services, name)
}

func (l *List) WebsiteAllowed(name string) bool {
	return l != nil && matchAny(l.websites, name)
}

// Len returns the number of service and website entries.
func (l *List) Len() (services, websites int) {
	if l == nil {
		return 0, 0
	}
	return len(l.services), len(l.websites)
}

func matchAny(patterns []string, name string) bool {
	if name == "" {
		return false
	}
	name = fold(name)
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// slash stands in for "/" so path.Match treats it as an ordinary character.
const slash = "\x00"

func fold(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "/", slash)
}
