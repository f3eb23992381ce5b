package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thealah/rest-windows-service-health-facade/internal/allowlist"
	"github.com/thealah/rest-windows-service-health-facade/internal/executor/executortest"
	"github.com/thealah/rest-windows-service-health-facade/internal/health"
	"github.com/thealah/rest-windows-service-health-facade/internal/iissite"
	"github.com/thealah/rest-windows-service-health-facade/internal/svcquery"
)

const netStart = "These Windows services are started:\r\n" +
	"\r\n" +
	"  MySQL80\r\n" +
	"  Secret Service\r\n" +
	"The command completed successfully.\r\n"

const appcmdSites = `SITE "Default Web Site" (id:1,bindings:http/*:80:,state:Started)
SITE "Intranet" (id:2,bindings:http/*:8080:,state:Stopped)
`

type fixture struct {
	services *executortest.Runner
	websites *executortest.Runner
	handler  http.Handler
}

func newFixture(t *testing.T, services, websites *executortest.Runner) *fixture {
	t.Helper()
	filter := allowlist.MustCompile(allowlist.Rules{
		Services: []string{"MySQL80", "Ghost"},
		Websites: []string{"Default Web Site", "Intranet", "NoSuchSite"},
	})
	srv := &Server{
		Services: &svcquery.Lister{Runner: services, Command: "net", Filter: filter},
		Websites: &iissite.Lister{Runner: websites, Command: "appcmd.exe", Filter: filter},
		Filter:   filter,
		Mapper:   health.Mapper{Host: "WEB01"},
		Port:     3000,
	}
	return &fixture{services: services, websites: websites, handler: srv.Handler()}
}

func defaultFixture(t *testing.T) *fixture {
	return newFixture(t, &executortest.Runner{Stdout: netStart}, &executortest.Runner{Stdout: appcmdSites})
}

func (f *fixture) get(t *testing.T, target string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out), body)
	return out
}

func TestServiceProbeFound(t *testing.T) {
	f := defaultFixture(t)
	res, body := f.get(t, "/MySQL80")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	assert.NotEmpty(t, res.Header.Get(requestIDHeader))
	assert.Equal(t, map[string]any{
		"type": "Windows Service",
		"host": "WEB01",
		"ui":   map[string]any{"info": "/info/MySQL80"},
	}, decode(t, body))
	assert.Equal(t, []executortest.Call{{Name: "net", Args: []string{"start"}}}, f.services.Calls())
}

func TestServiceProbeCaseInsensitive(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/mysql80")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"info": "/info/MySQL80"}, decode(t, body)["ui"])
}

func TestServiceProbeMissing(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/Ghost")
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "Missing Windows Service 'Ghost' or it is stopped", decode(t, body)["message"])
}

func TestServiceProbeFilteredLooksMissing(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/Secret%20Service")
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "Missing Windows Service 'Secret Service' or it is stopped", decode(t, body)["message"])
}

func TestServiceProbeCommandError(t *testing.T) {
	f := newFixture(t,
		&executortest.Runner{Stdout: netStart, Stderr: "System error 5 has occurred.\r\n\r\nAccess is denied."},
		&executortest.Runner{})
	res, body := f.get(t, "/MySQL80")

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	got := decode(t, body)
	assert.Equal(t, "Error reading Windows Services", got["message"])
	assert.Equal(t, map[string]any{"info": "/info/MySQL80"}, got["ui"])
	assert.NotContains(t, body, "Access is denied")
}

func TestServiceListing(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	got := decode(t, body)
	assert.Equal(t, []any{"MySQL80"}, got["services"])
	assert.Equal(t, "WEB01", got["host"])
	assert.Contains(t, got["message"], "/$WINDOWS_SERVICE_NAME")
}

func TestServiceListingError(t *testing.T) {
	f := newFixture(t, &executortest.Runner{Stderr: "boom"}, &executortest.Runner{})
	res, _ := f.get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestServiceInfo(t *testing.T) {
	f := defaultFixture(t)
	res, body := f.get(t, "/info/MySQL80")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	got := decode(t, body)
	assert.Equal(t, "MySQL80", got["windowsService"])
	assert.Equal(t, float64(3000), got["healthCheckPort"])
	assert.Empty(t, f.services.Calls(), "info documents never run a command")
}

func TestServiceInfoDeniedIsEmpty(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/info/Secret%20Service")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, body)
}

func TestWebsiteProbeStarted(t *testing.T) {
	f := newFixture(t, &executortest.Runner{},
		&executortest.Runner{Stdout: `SITE "Default Web Site" (id:1,bindings:http/*:80:,state:Started)`})
	res, body := f.get(t, "/iis/Default%20Web%20Site")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{
		"type":      "Website",
		"host":      "WEB01",
		"iisStatus": "Started",
		"bindings":  "http/*:80:",
		"ui":        map[string]any{"info": "/iis/info/Default%20Web%20Site"},
	}, decode(t, body))
	assert.Equal(t, []string{"list", "site", "/name:Default Web Site"}, f.websites.Calls()[0].Args)
}

func TestWebsiteProbeStopped(t *testing.T) {
	f := newFixture(t, &executortest.Runner{},
		&executortest.Runner{Stdout: `SITE "Intranet" (id:2,bindings:http/*:8080:,state:Stopped)`})
	res, body := f.get(t, "/iis/Intranet")
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "Stopped", decode(t, body)["iisStatus"])
}

func TestWebsiteProbeMissing(t *testing.T) {
	f := newFixture(t, &executortest.Runner{}, &executortest.Runner{})
	res, body := f.get(t, "/iis/NoSuchSite")
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, decode(t, body)["message"], "Missing Website 'NoSuchSite'")
}

func TestWebsiteProbeInvalidNameNeverSpawns(t *testing.T) {
	f := defaultFixture(t)
	for _, target := range []string{"/iis/site;rm", "/iis/a%26b", "/iis/%22quoted%22", "/iis/x%2Fy"} {
		res, body := f.get(t, target)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode, target)
		assert.Equal(t, "The data you sent was invalid. Invalid Site Name", body, target)
	}
	assert.Empty(t, f.websites.Calls())
}

func TestWebsiteProbeCommandError(t *testing.T) {
	f := newFixture(t, &executortest.Runner{}, &executortest.Runner{Stderr: "ERROR ( message:Access denied. )"})
	res, body := f.get(t, "/iis/Intranet")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Error reading IIS Websites", decode(t, body)["message"])
}

func TestWebsiteListing(t *testing.T) {
	f := defaultFixture(t)
	res, body := f.get(t, "/iis")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	services := decode(t, body)["services"].([]any)
	require.Len(t, services, 2)
	assert.Equal(t, "Stopped", services[1].(map[string]any)["state"], "listing ignores state")
	assert.Equal(t, []string{"list", "site", "/state:started"}, f.websites.Calls()[0].Args)
}

func TestWebsiteInfo(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/iis/info/Intranet")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Intranet", decode(t, body)["website"])

	res, body = defaultFixture(t).get(t, "/iis/info/Hidden")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, body)
}

func TestJSONPCallback(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/MySQL80?callback=handle")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/javascript; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.True(t, strings.HasPrefix(body, "/**/ typeof handle === 'function' && handle({"), body)
	assert.True(t, strings.HasSuffix(body, "});"), body)
}

func TestJSONPCallbackIsSanitized(t *testing.T) {
	_, body := defaultFixture(t).get(t, "/MySQL80?callback=alert(1)%3Bevil")
	assert.True(t, strings.HasPrefix(body, "/**/ typeof alert1evil === 'function'"), body)

	res, body := defaultFixture(t).get(t, "/MySQL80?callback=%28%29")
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "{"), body)
}

func TestPanicIsRecovered(t *testing.T) {
	h := withRequestLogging(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWildcardAllowListKeepsSlashNames(t *testing.T) {
	out := "These Windows services are started:\r\n\r\n" +
		"  TCP/IP NetBIOS Helper\r\n  MySQL80\r\n" +
		"The command completed successfully.\r\n"
	filter := allowlist.MustCompile(allowlist.Rules{Services: []string{"*"}})
	srv := &Server{
		Services: &svcquery.Lister{Runner: &executortest.Runner{Stdout: out}, Command: "net", Filter: filter},
		Websites: &iissite.Lister{Runner: &executortest.Runner{}, Command: "appcmd.exe", Filter: filter},
		Filter:   filter,
		Mapper:   health.Mapper{Host: "WEB01"},
		Port:     3000,
	}
	f := &fixture{handler: srv.Handler()}

	res, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []any{"TCP/IP NetBIOS Helper", "MySQL80"}, decode(t, body)["services"])

	res, body = f.get(t, "/TCP%2FIP%20NetBIOS%20Helper")
	assert.Equal(t, http.StatusOK, res.StatusCode, body)
	assert.Equal(t, map[string]any{"info": "/info/TCP%2FIP%20NetBIOS%20Helper"}, decode(t, body)["ui"])
}

func TestWebsiteListingTrailingSlash(t *testing.T) {
	res, body := defaultFixture(t).get(t, "/iis/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode(t, body)["services"], 2)
}
