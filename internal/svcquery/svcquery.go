// Package svcquery enumerates started Windows services by parsing the
// output of "net start".
package svcquery

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/thealah/rest-windows-service-health-facade/internal/allowlist"
	"github.com/thealah/rest-windows-service-health-facade/internal/executor"
)

// Fixed lines net.exe prints around the service list. A service whose
// real name equals one of these is indistinguishable from them and is
// dropped.
const (
	bannerHeader = "These Windows services are started:"
	bannerFooter = "The command completed successfully."

	headerLines = 2
)

// Service is a started Windows service. Being listed is the only fact known
// about it, so it carries no state.
type Service struct {
	Name string
}

// MarshalJSON encodes the service as its bare name.
func (s Service) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Name)
}

// StripBanner trims line and blanks it when it is one of net.exe's fixed
// banner lines. Applying it twice gives the same result as applying it once.
func StripBanner(line string) string {
	line = strings.TrimSpace(line)
	switch line {
	case bannerHeader, bannerFooter:
		return ""
	default:
		return line
	}
}

// ParseNetStart reads "net start" output: the first two lines are skipped,
// every other line is stripped of banners and whitespace, and blank results
// are dropped. Order follows the command output.
func ParseNetStart(lines iter.Seq[string]) []Service {
	services := []Service{}
	skipped := 0
	for line := range lines {
		if skipped < headerLines {
			skipped++
			continue
		}
		if name := StripBanner(line); name != "" {
			services = append(services, Service{Name: name})
		}
	}
	return services
}

// Lister runs the service-control command and filters its result.
type Lister struct {
	Runner  executor.Runner
	Command string
	Filter  allowlist.Filter
}

// List returns the started services the allow-list permits. When name is
// set only services matching it case-insensitively are returned. On error
// the slice is nil and err is typically an *executor.CommandError.
func (l *Lister) List(ctx context.Context, name string) ([]Service, error) {
	var parsed []Service
	err := l.Runner.Run(ctx, l.Command, []string{"start"}, func(lines iter.Seq[string]) {
		parsed = ParseNetStart(lines)
	})
	if err != nil {
		return nil, err
	}

	services := make([]Service, 0, len(parsed))
	for _, s := range parsed {
		if !l.Filter.ServiceAllowed(s.Name) {
			continue
		}
		if name != "" && !strings.EqualFold(s.Name, name) {
			continue
		}
		services = append(services, s)
	}
	return services, nil
}
