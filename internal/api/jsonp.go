package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/thealah/rest-windows-service-health-facade/internal/health"
)

// Characters allowed in a JSONP callback name; everything else is dropped.
var callbackSanitizer = regexp.MustCompile(`[^\[\]\w$.]`)

func writeResponse(w http.ResponseWriter, r *http.Request, resp health.Response) {
	writeJSONP(w, r, resp.Code, resp.Body)
}

// writeJSONP writes body as JSON, or as a JSONP call when the request has a
// callback query parameter.
func writeJSONP(w http.ResponseWriter, r *http.Request, code int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error("encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	callback := callbackSanitizer.ReplaceAllString(r.URL.Query().Get("callback"), "")
	if callback == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		_, _ = w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	out := make([]byte, 0, len(data)+2*len(callback)+40)
	out = append(out, "/**/ typeof "...)
	out = append(out, callback...)
	out = append(out, " === 'function' && "...)
	out = append(out, callback...)
	out = append(out, '(')
	out = append(out, data...)
	out = append(out, ");"...)
	_, _ = w.Write(out)
}
