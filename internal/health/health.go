// Package health turns enumeration results into health-check responses:
// an HTTP status code plus a JSON payload.
package health

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/thealah/rest-windows-service-health-facade/internal/iissite"
	"github.com/thealah/rest-windows-service-health-facade/internal/svcquery"
)

// Status is the outcome of a single-target probe.
type Status string

const (
	Healthy   Status = "healthy"
	Unhealthy Status = "unhealthy"
	Missing   Status = "missing"
	Failed    Status = "error"
)

// HTTPStatus maps s to the status code automated callers key on. Missing
// and Unhealthy share 502 so a stopped, absent or hidden target looks like
// any other down dependency.
func (s Status) HTTPStatus() int {
	switch s {
	case Healthy:
		return http.StatusOK
	case Unhealthy, Missing:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

const (
	TypeService = "Windows Service"
	TypeWebsite = "Website"

	projectURL = "https://github.com/thealah/rest-windows-service-health-facade"
)

// UI carries hints for dashboards rendering the payload.
type UI struct {
	Info string   `json:"info,omitempty"`
	Hide []string `json:"hide,omitempty"`
}

// Probe is the payload of a single-target health check.
type Probe struct {
	Type      string `json:"type"`
	Host      string `json:"host"`
	Message   string `json:"message,omitempty"`
	IISStatus string `json:"iisStatus,omitempty"`
	Bindings  string `json:"bindings,omitempty"`
	UI        *UI    `json:"ui,omitempty"`
}

// Listing is the payload of an inventory request.
type Listing struct {
	Services any    `json:"services"`
	Host     string `json:"host"`
	Message  string `json:"message"`
}

// Info describes how a target is monitored.
type Info struct {
	Description     string `json:"description"`
	WindowsService  string `json:"windowsService,omitempty"`
	Website         string `json:"website,omitempty"`
	Host            string `json:"host"`
	HealthCheckHost string `json:"healthCheckHost"`
	HealthCheckPort int    `json:"healthCheckPort"`
	UI              UI     `json:"ui"`
}

// Response is what the HTTP layer writes. Status is empty for listings and
// info documents, which are not probes.
type Response struct {
	Status Status
	Code   int
	Body   any
}

// Mapper builds responses for one host. Host is resolved once at startup.
type Mapper struct {
	Host string
}

func serviceInfoPath(name string) string { return "/info/" + url.PathEscape(name) }

func websiteInfoPath(name string) string { return "/iis/info/" + url.PathEscape(name) }

func (m Mapper) probe(status Status, p Probe) Response {
	p.Host = m.Host
	return Response{Status: status, Code: status.HTTPStatus(), Body: p}
}

// Service maps the result of listing services filtered to name. Services
// carry no running state, so being found is healthy. err is never echoed.
func (m Mapper) Service(name string, services []svcquery.Service, err error) Response {
	switch {
	case err != nil:
		return m.probe(Failed, Probe{
			Type:    TypeService,
			Message: "Error reading Windows Services",
			UI:      &UI{Info: serviceInfoPath(name)},
		})
	case len(services) == 0:
		return m.probe(Missing, Probe{
			Type:    TypeService,
			Message: fmt.Sprintf("Missing Windows Service '%s' or it is stopped", name),
			UI:      &UI{Info: serviceInfoPath(name)},
		})
	default:
		return m.probe(Healthy, Probe{
			Type: TypeService,
			UI:   &UI{Info: serviceInfoPath(services[0].Name)},
		})
	}
}

// Website maps the result of listing sites filtered to name. A site that is
// found but not started is reported as unhealthy.
func (m Mapper) Website(name string, sites []iissite.Site, err error) Response {
	switch {
	case err != nil:
		return m.probe(Failed, Probe{
			Type:    TypeWebsite,
			Message: "Error reading IIS Websites",
			UI:      &UI{Info: websiteInfoPath(name)},
		})
	case len(sites) == 0:
		return m.probe(Missing, Probe{
			Type:    TypeWebsite,
			Message: fmt.Sprintf("Missing Website '%s'", name),
			UI:      &UI{Info: websiteInfoPath(name)},
		})
	}

	site := sites[0]
	status := Healthy
	if !site.Running() {
		status = Unhealthy
	}
	return m.probe(status, Probe{
		Type:      TypeWebsite,
		IISStatus: site.State,
		Bindings:  site.Bindings,
		UI:        &UI{Info: websiteInfoPath(name)},
	})
}

func (m Mapper) listingError(kind, message string) Response {
	return Response{
		Status: Failed,
		Code:   http.StatusInternalServerError,
		Body:   Probe{Type: kind, Host: m.Host, Message: message},
	}
}

// ServiceList is the inventory of visible services. It is always 200 on
// success; individual states do not matter for an inventory.
func (m Mapper) ServiceList(services []svcquery.Service, err error) Response {
	if err != nil {
		return m.listingError(TypeService, "Error reading Windows Services")
	}
	if services == nil {
		services = []svcquery.Service{}
	}
	return Response{Code: http.StatusOK, Body: Listing{
		Services: services,
		Host:     m.Host,
		Message:  "To use the healthcheck portion of the API, use the route: /$WINDOWS_SERVICE_NAME",
	}}
}

// WebsiteList is the inventory of visible, started websites.
func (m Mapper) WebsiteList(sites []iissite.Site, err error) Response {
	if err != nil {
		return m.listingError(TypeWebsite, "Error reading IIS Websites")
	}
	if sites == nil {
		sites = []iissite.Site{}
	}
	return Response{Code: http.StatusOK, Body: Listing{
		Services: sites,
		Host:     m.Host,
		Message:  "To use the healthcheck portion of the API, use the route: /iis/$IIS_SITE_NAME",
	}}
}

func (m Mapper) info(port int) Info {
	return Info{
		Host:            m.Host,
		HealthCheckHost: m.Host,
		HealthCheckPort: port,
		UI:              UI{Hide: []string{"healthCheckHost", "healthCheckPort"}},
	}
}

// ServiceInfo describes how service name is monitored through port.
func (m Mapper) ServiceInfo(name string, port int) Response {
	info := m.info(port)
	info.Description = "Windows Service is monitored by a REST API - " + projectURL
	info.WindowsService = name
	return Response{Code: http.StatusOK, Body: info}
}

// WebsiteInfo describes how website name is monitored through port.
func (m Mapper) WebsiteInfo(name string, port int) Response {
	info := m.info(port)
	info.Description = "IIS Website is monitored by a REST API - " + projectURL
	info.Website = name
	return Response{Code: http.StatusOK, Body: info}
}
