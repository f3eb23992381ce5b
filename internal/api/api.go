// Package api exposes service and website health over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/thealah/rest-windows-service-health-facade/internal/allowlist"
	"github.com/thealah/rest-windows-service-health-facade/internal/executor"
	"github.com/thealah/rest-windows-service-health-facade/internal/health"
	"github.com/thealah/rest-windows-service-health-facade/internal/iissite"
	"github.com/thealah/rest-windows-service-health-facade/internal/logging"
	"github.com/thealah/rest-windows-service-health-facade/internal/svcquery"
)

var log = logging.L("api")

// Site names reach appcmd's argument vector, so only this set is accepted.
var siteNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\- .]+$`)

// ServiceLister is satisfied by *svcquery.Lister.
type ServiceLister interface {
	List(ctx context.Context, name string) ([]svcquery.Service, error)
}

// WebsiteLister is satisfied by *iissite.Lister.
type WebsiteLister interface {
	List(ctx context.Context, name string) ([]iissite.Site, error)
}

// Server wires the listers and the allow-list to the health mapper.
type Server struct {
	Services ServiceLister
	Websites WebsiteLister
	Filter   allowlist.Filter
	Mapper   health.Mapper
	// Port is the health-check port advertised by the info endpoints.
	Port int
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.listServices)
	mux.HandleFunc("GET /{service}", s.probeService)
	mux.HandleFunc("GET /info/{service}", s.serviceInfo)
	mux.HandleFunc("GET /iis", s.listWebsites)
	mux.HandleFunc("GET /iis/{$}", s.listWebsites)
	mux.HandleFunc("GET /iis/{site}", s.probeWebsite)
	mux.HandleFunc("GET /iis/info/{site}", s.websiteInfo)
	return withRequestLogging(mux)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.Services.List(r.Context(), "")
	logFailure(r, "", err)
	writeResponse(w, r, s.Mapper.ServiceList(services, err))
}

func (s *Server) probeService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("service")
	services, err := s.Services.List(r.Context(), name)
	logFailure(r, name, err)
	resp := s.Mapper.Service(name, services, err)
	logging.FromContext(r.Context()).Debug("service probed", logging.KeyTarget, name, "status", resp.Status)
	writeResponse(w, r, resp)
}

func (s *Server) serviceInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("service")
	if !s.Filter.ServiceAllowed(name) {
		// Same empty answer whether the service exists or not.
		return
	}
	writeResponse(w, r, s.Mapper.ServiceInfo(name, s.Port))
}

func (s *Server) listWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.Websites.List(r.Context(), "")
	logFailure(r, "", err)
	writeResponse(w, r, s.Mapper.WebsiteList(sites, err))
}

func (s *Server) probeWebsite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("site")
	if !siteNamePattern.MatchString(name) {
		badRequest(w, r, "Invalid Site Name")
		return
	}
	sites, err := s.Websites.List(r.Context(), name)
	logFailure(r, name, err)
	resp := s.Mapper.Website(name, sites, err)
	logging.FromContext(r.Context()).Debug("website probed", logging.KeyTarget, name, "status", resp.Status)
	writeResponse(w, r, resp)
}

func (s *Server) websiteInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("site")
	if !s.Filter.WebsiteAllowed(name) {
		return
	}
	writeResponse(w, r, s.Mapper.WebsiteInfo(name, s.Port))
}

// badRequest keeps the historical 500 status for rejected input.
func badRequest(w http.ResponseWriter, r *http.Request, reason string) {
	logging.FromContext(r.Context()).Warn("rejected request", "reason", reason, "path", r.URL.Path)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("The data you sent was invalid. " + reason))
}

func logFailure(r *http.Request, target string, err error) {
	if err == nil {
		return
	}
	logger := logging.FromContext(r.Context())
	var ce *executor.CommandError
	switch {
	case errors.As(err, &ce):
		logger.Error("enumeration command failed",
			logging.KeyTarget, target,
			logging.KeyCommand, ce.Command,
			"stderr", ce.Stderr,
			logging.KeyError, ce.Err,
		)
	case errors.Is(err, context.Canceled):
		logger.Info("request cancelled before enumeration finished", logging.KeyTarget, target)
	default:
		logger.Error("enumeration failed", logging.KeyTarget, target, logging.KeyError, err)
	}
}
