package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func doRequest(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHTTPParse(t *testing.T) {
	svc := newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}})
	h := NewHTTPServer(svc, 1024, discardLogger()).Routes()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantOutcome string
	}{
		{name: "json", contentType: "application/json", body: `{"text":"RECEIPT\nTOTAL 42"}`, wantStatus: http.StatusOK, wantOutcome: "extracted"},
		{name: "plain text", contentType: "text/plain; charset=utf-8", body: "RECEIPT\nTOTAL 42", wantStatus: http.StatusOK, wantOutcome: "extracted"},
		{name: "no match", contentType: "application/json", body: `{"text":"hello"}`, wantStatus: http.StatusOK, wantOutcome: "no_match"},
		{name: "rejected", contentType: "application/json", body: `{"text":"RECEIPT only"}`, wantStatus: http.StatusOK, wantOutcome: "rejected"},
		{name: "missing text", contentType: "application/json", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json", contentType: "application/json", body: `{"text":`, wantStatus: http.StatusBadRequest},
		{name: "text too long", contentType: "application/json", body: `{"text":"` + strings.Repeat("x", 1025) + `"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/v1/parse", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
			if tt.wantOutcome == "" {
				return
			}
			got := decodeBody(t, rec)
			if got["outcome"] != tt.wantOutcome {
				t.Errorf("outcome = %v", got["outcome"])
			}
		})
	}
}

func TestHTTPParseBodyLimit(t *testing.T) {
	svc := newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}})
	// body limit is 2*16+1024 bytes
	h := NewHTTPServer(svc, 16, discardLogger()).Routes()
	huge := strings.Repeat("x", 4096)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{name: "json over limit", contentType: "application/json", body: `{"text":"` + huge + `"}`, wantStatus: http.StatusRequestEntityTooLarge, wantCode: "request_too_large"},
		{name: "plain over limit", contentType: "text/plain", body: huge, wantStatus: http.StatusRequestEntityTooLarge, wantCode: "request_too_large"},
		{name: "json malformed under limit", contentType: "application/json", body: `{"text":`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/v1/parse", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestHTTPParseFields(t *testing.T) {
	svc := newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}})
	h := NewHTTPServer(svc, 1024, discardLogger()).Routes()

	rec := doRequest(t, h, http.MethodPost, "/v1/parse", "application/json", `{"text":"RECEIPT STORE acme TOTAL 7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	fields := got["data"].(map[string]any)["fields"].(map[string]any)
	if fields["total"] != float64(7) || fields["store"] != "acme" {
		t.Errorf("fields = %v", fields)
	}
	if got["model"] != "receipt" {
		t.Errorf("model = %v", got["model"])
	}
}

func TestHTTPModelsAndReload(t *testing.T) {
	fsys := fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}}
	svc := newTestService(t, fsys)
	h := NewHTTPServer(svc, 1024, discardLogger()).Routes()

	rec := doRequest(t, h, http.MethodGet, "/v1/models", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("models status = %d", rec.Code)
	}
	models := decodeBody(t, rec)["models"].([]any)
	if len(models) != 1 {
		t.Fatalf("models = %v", models)
	}

	fsys["broken.yml"] = &fstest.MapFile{Data: []byte(brokenDRM)}
	rec = doRequest(t, h, http.MethodPost, "/v1/models/reload", "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("broken reload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["code"]; got != "drm_config_error" {
		t.Errorf("code = %v", got)
	}

	delete(fsys, "broken.yml")
	rec = doRequest(t, h, http.MethodPost, "/v1/models/reload", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
}

func TestHTTPHealthAndMetrics(t *testing.T) {
	svc := newTestService(t, fstest.MapFS{"receipt.yml": {Data: []byte(receiptDRM)}})
	h := NewHTTPServer(svc, 1024, discardLogger()).Routes()

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["status"] != "ok" || got["models"] != float64(1) {
		t.Errorf("healthz = %v", got)
	}

	doRequest(t, h, http.MethodPost, "/v1/parse", "application/json", `{"text":"RECEIPT TOTAL 1"}`)
	rec = doRequest(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "drmparse_parse_total") {
		t.Error("metrics output missing drmparse_parse_total")
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := doRequest(t, h, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["code"]; got != "internal_error" {
		t.Errorf("code = %v", got)
	}
}
