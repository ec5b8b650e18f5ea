package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/csv2xlsx/internal/config"
	"github.com/JonMunkholm/csv2xlsx/internal/core"
	"github.com/JonMunkholm/csv2xlsx/internal/history"
	"github.com/JonMunkholm/csv2xlsx/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 10 * time.Second},
		Upload:  config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
		Convert: config.ConvertConfig{Delimiter: ",", Encoding: "utf-8", Engine: "native", AutoFitRows: 1, MaxLineBytes: 1 << 16},
		Rate:    config.RateLimitConfig{Enabled: false, RequestsPerMinute: 100, ConvertLimit: 20},
		Security: config.SecurityConfig{
			EnableCSP:   true,
			CORSOrigins: []string{"http://localhost:3000"},
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc, err := core.NewService(core.ServiceConfig{
		Store:   store,
		History: history.NewMemoryHistory(10),
		Limiter: core.NewConversionLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Defaults: core.Options{
			Delimiter: cfg.Convert.DelimiterValue(),
			Encoding:  cfg.Convert.Encoding,
			Engine:    cfg.Convert.Engine,
		},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	s := NewServer(svc, cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// uploadRequest builds a multipart POST with content as the "file" part.
// An empty filename omits the part.
func uploadRequest(t *testing.T, target, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

// attachmentName parses Content-Disposition and returns its filename.
func attachmentName(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	header := rec.Header().Get("Content-Disposition")
	disposition, params, err := mime.ParseMediaType(header)
	if err != nil {
		t.Fatalf("parse Content-Disposition %q: %v", header, err)
	}
	if disposition != "attachment" {
		t.Errorf("disposition = %q, want attachment", disposition)
	}
	return params["filename"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestConvert_StoreListDownloadOnce(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := uploadRequest(t, "/api/v1/convert?outputFileName=report", "input.csv",
		[]byte("name,qty,price\nwidget,3,2.50\n"), nil)
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ConvertResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.File != "report.xlsx" || resp.Rows != 2 || resp.Bytes == 0 {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(resp.Message, "report.xlsx") {
		t.Errorf("message = %q", resp.Message)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	var names []string
	if err := json.NewDecoder(rec.Body).Decode(&names); err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "report.xlsx" {
		t.Errorf("files = %v", names)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/download/report.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := attachmentName(t, rec); got != "report.xlsx" {
		t.Errorf("attachment name = %q", got)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("downloaded file is not a workbook: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue("Data", "A2")
	if err != nil || v != "widget" {
		t.Errorf("A2 = %q, %v", v, err)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/download/report", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second download status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "STO001" {
		t.Errorf("code = %q, want STO001", resp.Code)
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		filename   string
		content    []byte
		fields     map[string]string
		maxSize    int64
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing file",
			target:     "/api/v1/convert?outputFileName=out",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name:       "missing output name",
			target:     "/api/v1/convert",
			filename:   "in.csv",
			content:    []byte("a,b\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE003",
		},
		{
			name:       "path in output name",
			target:     "/api/v1/convert",
			filename:   "in.csv",
			content:    []byte("a,b\n"),
			fields:     map[string]string{"outputFileName": "../escape"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE003",
		},
		{
			name:       "invalid utf-8",
			target:     "/api/v1/convert?outputFileName=out",
			filename:   "in.csv",
			content:    []byte("ok\nbad \xff\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "READ001",
		},
		{
			name:       "unknown encoding",
			target:     "/api/v1/convert?outputFileName=out&encoding=klingon",
			filename:   "in.csv",
			content:    []byte("a\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "READ004",
		},
		{
			name:       "unknown engine",
			target:     "/api/v1/convert?outputFileName=out&engine=lotus",
			filename:   "in.csv",
			content:    []byte("a\n"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "ENC005",
		},
		{
			name:       "too large",
			target:     "/api/v1/convert?outputFileName=out",
			filename:   "in.csv",
			content:    bytes.Repeat([]byte("a,b,c\n"), 2000),
			maxSize:    1024,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.maxSize > 0 {
				cfg.Upload.MaxFileSize = tt.maxSize
			}
			s := newTestServer(t, cfg)

			rec := serve(s, uploadRequest(t, tt.target, tt.filename, tt.content, tt.fields))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestConvert_DelimiterOverride(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := uploadRequest(t, "/api/v1/convert", "in.tsv", []byte("a\tb\n1\t2\n"),
		map[string]string{"outputFileName": "tabs.xlsx", "delimiter": "tab"})
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/download/tabs.xlsx", nil))
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Data", "B2"); v != "2" {
		t.Errorf("B2 = %q, want %q", v, "2")
	}
}

func TestConvertStream(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/api/v1/convert/stream", "sales.csv", []byte("x,y\n1,2\n"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("Content-Type = %q", got)
	}
	if got := attachmentName(t, rec); got != "sales.xlsx" {
		t.Errorf("attachment name = %q", got)
	}
	if got := rec.Header().Get("X-Row-Count"); got != "2" {
		t.Errorf("X-Row-Count = %q", got)
	}
	if _, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Errorf("body is not a workbook: %v", err)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("stream conversion should not store files, got %s", rec.Body.String())
	}
}

func TestConvertStream_NonASCIIName(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, uploadRequest(t, "/api/v1/convert/stream", "café.csv", []byte("a\n"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	header := rec.Header().Get("Content-Disposition")
	for i := 0; i < len(header); i++ {
		if header[i] >= 0x80 || header[i] == '\\' {
			t.Fatalf("Content-Disposition %q is not a plain ASCII header value", header)
		}
	}
	if got := attachmentName(t, rec); got != "café.xlsx" {
		t.Errorf("attachment name = %q, want %q", got, "café.xlsx")
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"report.xlsx", "attachment; filename=report.xlsx"},
		{"my report.xlsx", `attachment; filename="my report.xlsx"`},
		{"café.xlsx", "attachment; filename*=utf-8''caf%C3%A9.xlsx"},
	}
	for _, tt := range tests {
		if got := contentDisposition(tt.name); got != tt.want {
			t.Errorf("contentDisposition(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestHistoryAndStatus(t *testing.T) {
	s := newTestServer(t, testConfig())

	for _, name := range []string{"first", "second"} {
		rec := serve(s, uploadRequest(t, "/api/v1/convert?outputFileName="+name, name+".csv", []byte("a\n"), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("convert %s: status %d", name, rec.Code)
		}
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var entries []history.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].OutputName != "second.xlsx" || entries[0].SourceName != "second.csv" {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].ClientIP != "192.0.2.1" {
		t.Errorf("ClientIP = %q", entries[0].ClientIP)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	var status struct {
		Conversions core.LimiterStatus `json:"conversions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Conversions.MaxConcurrent != 2 || status.Conversions.Started != 2 {
		t.Errorf("status = %+v", status.Conversions)
	}
}

func TestListFiles_Detail(t *testing.T) {
	s := newTestServer(t, testConfig())
	serve(s, uploadRequest(t, "/api/v1/convert?outputFileName=one", "one.csv", []byte("a\n"), nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/files?detail=true", nil))
	var files []storage.FileInfo
	if err := json.NewDecoder(rec.Body).Decode(&files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "one.xlsx" || files[0].Size == 0 {
		t.Errorf("files = %+v", files)
	}
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, testConfig())
	serve(s, uploadRequest(t, "/api/v1/convert?outputFileName=pending", "p.csv", []byte("a\n"), nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "pending.xlsx") {
		t.Error("index should list stored files")
	}
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/convert", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = serve(s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = serve(s, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q for foreign origin", got)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key, got %d", rec.Code)
	}
}

func TestConvertRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.ConvertLimit = 1
	s := newTestServer(t, cfg)

	rec := serve(s, uploadRequest(t, "/api/v1/convert/stream", "a.csv", []byte("a\n"), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first: status = %d", rec.Code)
	}

	rec = serve(s, uploadRequest(t, "/api/v1/convert/stream", "a.csv", []byte("a\n"), nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if resp := decodeError(t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)); rec.Code != http.StatusOK {
		t.Errorf("non-convert route should not share the convert limit, got %d", rec.Code)
	}
}

func TestRespondError_Formats(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		value   string
		wantCT  string
		wantSub string
	}{
		{"htmx", "HX-Request", "true", "text/html", "FILE002"},
		{"json", "Accept", "application/json", "application/json", `"code":"FILE002"`},
		{"plain", "", "", "text/plain", "(FILE002)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/upload", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			respondError(rec, req, core.ErrNoFile, http.StatusBadRequest)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantCT) {
				t.Errorf("Content-Type = %q, want prefix %q", ct, tt.wantCT)
			}
			if !strings.Contains(rec.Body.String(), tt.wantSub) {
				t.Errorf("body %q missing %q", rec.Body.String(), tt.wantSub)
			}
		})
	}
}
