// Package iissite enumerates IIS websites by parsing the output of
// "appcmd.exe list site".
//
// The parser mirrors appcmd's text format closely and nothing more: a comma
// or colon inside an attribute value (a binding list, for instance) splits
// that attribute. Callers rely on this exact shape, so changing how lines are
// split is a breaking change to the API payload.
package iissite

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/thealah/rest-windows-service-health-facade/internal/allowlist"
	"github.com/thealah/rest-windows-service-health-facade/internal/executor"
)

const (
	sitePrefix = `SITE "`

	// StateStarted is the state appcmd reports for a running site.
	StateStarted = "Started"
)

// Site is one website reported by appcmd. Attributes holds every parsed
// key:value pair plus "name"; State and Bindings are copied out of it.
type Site struct {
	Name       string
	State      string
	Bindings   string
	Attributes map[string]string
}

// Running reports whether IIS has the site started.
func (s Site) Running() bool {
	return s.State == StateStarted
}

// MarshalJSON encodes the site as its flat attribute object.
func (s Site) MarshalJSON() ([]byte, error) {
	attrs := make(map[string]string, len(s.Attributes)+1)
	for k, v := range s.Attributes {
		attrs[k] = v
	}
	attrs["name"] = s.Name
	return json.Marshal(attrs)
}

// ParseLine parses one line of the form
//
//	SITE "Default Web Site" (id:1,bindings:http/*:80:,state:Started)
//
// The name runs from after `SITE "` to the next quote. The attribute block is
// everything between the first "(" and the last ")" in the line, split on ","
// into pairs and each pair on its first ":". Values are kept verbatim. Pairs
// without a ":" or with an empty key are skipped. Lines that do not start
// with `SITE "`, or whose name is unterminated or empty, yield false.
func ParseLine(line string) (Site, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, sitePrefix) {
		return Site{}, false
	}

	rest := line[len(sitePrefix):]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return Site{}, false
	}
	name := rest[:end]

	attrs := make(map[string]string)
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open >= 0 && closing > open {
		for _, pair := range strings.Split(line[open+1:closing], ",") {
			key, value, ok := strings.Cut(pair, ":")
			if !ok || key == "" {
				continue
			}
			attrs[key] = value
		}
	}
	attrs["name"] = name

	return Site{
		Name:       name,
		State:      attrs["state"],
		Bindings:   attrs["bindings"],
		Attributes: attrs,
	}, true
}

// Parse returns a Site for every parseable line, in output order.
func Parse(lines iter.Seq[string]) []Site {
	sites := []Site{}
	for line := range lines {
		if site, ok := ParseLine(line); ok {
			sites = append(sites, site)
		}
	}
	return sites
}

// Lister runs appcmd and filters its result.
type Lister struct {
	Runner  executor.Runner
	Command string
	Filter  allowlist.Filter
}

// Args builds the appcmd argument vector. With a name appcmd filters to
// that site; without one only started sites are listed.
func Args(name string) []string {
	args := []string{"list", "site"}
	if name != "" {
		return append(args, "/name:"+name)
	}
	return append(args, "/state:started")
}

// List returns the sites the allow-list permits. With a name, only sites
// matching it case-insensitively are kept. On error the slice is nil.
func (l *Lister) List(ctx context.Context, name string) ([]Site, error) {
	var parsed []Site
	err := l.Runner.Run(ctx, l.Command, Args(name), func(lines iter.Seq[string]) {
		parsed = Parse(lines)
	})
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(parsed))
	for _, s := range parsed {
		if !l.Filter.WebsiteAllowed(s.Name) {
			continue
		}
		if name != "" && !strings.EqualFold(s.Name, name) {
			continue
		}
		sites = append(sites, s)
	}
	return sites, nil
}
