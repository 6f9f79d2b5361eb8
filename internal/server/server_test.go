package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"veriscan/internal/infrastructure/bus"
	"veriscan/internal/infrastructure/objectstore"
	"veriscan/internal/infrastructure/persistence/sqlite/model"
	"veriscan/internal/infrastructure/persistence/sqlite/repository"
	"veriscan/internal/ports"
	scanusecase "veriscan/internal/usecase/scan"
)

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) ExtractText(context.Context, []byte) (string, error) {
	return e.text, e.err
}

func (e *stubExtractor) ExtractTextDetailed(context.Context, []byte) (ports.Extraction, error) {
	return ports.Extraction{Text: e.text}, e.err
}

type stubAnalyzer struct {
	verdict ports.Verdict
}

func (a *stubAnalyzer) Analyze(context.Context, string) (ports.Verdict, error) {
	return a.verdict, nil
}

func setupServer(t *testing.T) (*httptest.Server, *stubExtractor) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "scans.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.ScanRecord{}); err != nil {
		t.Fatalf("auto migrate scan_records: %v", err)
	}

	store, err := objectstore.NewFSStore(t.TempDir(), "http://localhost:8080", []byte("test-secret"))
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	memBus := bus.NewMemoryBus()
	repo := repository.NewScanRepository(db, memBus)
	extractor := &stubExtractor{text: "Breaking news headline"}
	analyzer := &stubAnalyzer{verdict: ports.Verdict{Credibility: 75, Explanation: "plausible"}}
	svc := scanusecase.NewService(repo, store, extractor, analyzer)

	srv := httptest.NewServer(New(svc, memBus, store, time.Minute).Router())
	t.Cleanup(srv.Close)
	return srv, extractor
}

func submitImage(t *testing.T, srv *httptest.Server, owner, source string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "upload.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if source != "" {
		if err := writer.WriteField("source", source); err != nil {
			t.Fatalf("write source field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/scans", &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	return resp
}

func decodeRecord(t *testing.T, body io.Reader) recordJSON {
	t.Helper()

	var record recordJSON
	if err := json.NewDecoder(body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return record
}

func ownerGet(t *testing.T, srv *httptest.Server, owner, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Owner-ID", owner)

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	return resp
}

func TestSubmitAndListRoundTrip(t *testing.T) {
	srv, _ := setupServer(t)

	resp := submitImage(t, srv, "owner-a", "gallery")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}

	created := decodeRecord(t, resp.Body)
	if created.Status != "done" {
		t.Fatalf("created status = %q", created.Status)
	}
	if created.Credibility == nil || *created.Credibility != 75 {
		t.Fatalf("created credibility = %v", created.Credibility)
	}
	if created.ExtractedText != "Breaking news headline" {
		t.Fatalf("created extracted text = %q", created.ExtractedText)
	}

	listResp := ownerGet(t, srv, "owner-a", "/api/scans")
	defer func() { _ = listResp.Body.Close() }()
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", listResp.StatusCode)
	}

	var listed []recordJSON
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestSubmitRequiresOwnerHeader(t *testing.T) {
	srv, _ := setupServer(t)

	resp := submitImage(t, srv, "", "camera")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("submit status = %d, want 401", resp.StatusCode)
	}
}

func TestSubmitExtractionFailure(t *testing.T) {
	srv, extractor := setupServer(t)
	extractor.err = ports.ErrExtraction

	resp := submitImage(t, srv, "owner-a", "camera")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("submit status = %d, want 422", resp.StatusCode)
	}

	listResp := ownerGet(t, srv, "owner-a", "/api/scans")
	defer func() { _ = listResp.Body.Close() }()

	var listed []recordJSON
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("listed after failed extraction = %+v", listed)
	}
}

func TestGetIsOwnerScoped(t *testing.T) {
	srv, _ := setupServer(t)

	resp := submitImage(t, srv, "owner-a", "camera")
	created := decodeRecord(t, resp.Body)
	_ = resp.Body.Close()

	ownResp := ownerGet(t, srv, "owner-a", "/api/scans/"+created.ID)
	defer func() { _ = ownResp.Body.Close() }()
	if ownResp.StatusCode != http.StatusOK {
		t.Fatalf("get own status = %d", ownResp.StatusCode)
	}

	foreignResp := ownerGet(t, srv, "owner-b", "/api/scans/"+created.ID)
	defer func() { _ = foreignResp.Body.Close() }()
	if foreignResp.StatusCode != http.StatusNotFound {
		t.Fatalf("get foreign status = %d, want 404", foreignResp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	srv, _ := setupServer(t)

	resp := submitImage(t, srv, "owner-a", "camera")
	_ = resp.Body.Close()

	found := ownerGet(t, srv, "owner-a", "/api/scans/search?q=breaking")
	defer func() { _ = found.Body.Close() }()
	if found.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", found.StatusCode)
	}

	var records []recordJSON
	if err := json.NewDecoder(found.Body).Decode(&records); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("search results = %+v", records)
	}

	missing := ownerGet(t, srv, "owner-a", "/api/scans/search")
	defer func() { _ = missing.Body.Close() }()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("search without q status = %d, want 400", missing.StatusCode)
	}
}

func TestDeleteScan(t *testing.T) {
	srv, _ := setupServer(t)

	resp := submitImage(t, srv, "owner-a", "camera")
	created := decodeRecord(t, resp.Body)
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/scans/"+created.ID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Owner-ID", "owner-a")

	delResp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer func() { _ = delResp.Body.Close() }()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}

	getResp := ownerGet(t, srv, "owner-a", "/api/scans/"+created.ID)
	defer func() { _ = getResp.Body.Close() }()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", getResp.StatusCode)
	}
}

func TestImageRedirectAndObjectRetrieval(t *testing.T) {
	srv, _ := setupServer(t)

	resp := submitImage(t, srv, "owner-a", "camera")
	created := decodeRecord(t, resp.Body)
	_ = resp.Body.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/scans/"+created.ID+"/image", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Owner-ID", "owner-a")

	redirect, err := client.Do(req)
	if err != nil {
		t.Fatalf("image request: %v", err)
	}
	defer func() { _ = redirect.Body.Close() }()
	if redirect.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("image status = %d, want 307", redirect.StatusCode)
	}

	location := redirect.Header.Get("Location")
	if location == "" {
		t.Fatalf("image redirect missing Location header")
	}

	// The signed URL carries the configured base; replay it against the test
	// server to exercise the object handler.
	parsed, err := http.NewRequest(http.MethodGet, location, nil)
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	objResp, err := client.Get(srv.URL + parsed.URL.Path + "?" + parsed.URL.RawQuery)
	if err != nil {
		t.Fatalf("object request: %v", err)
	}
	defer func() { _ = objResp.Body.Close() }()
	if objResp.StatusCode != http.StatusOK {
		t.Fatalf("object status = %d", objResp.StatusCode)
	}

	payload, err := io.ReadAll(objResp.Body)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(payload) != "jpeg-bytes" {
		t.Fatalf("object payload = %q", payload)
	}

	tampered, err := client.Get(srv.URL + parsed.URL.Path + "?exp=9999999999&sig=deadbeef")
	if err != nil {
		t.Fatalf("tampered request: %v", err)
	}
	defer func() { _ = tampered.Body.Close() }()
	if tampered.StatusCode != http.StatusForbidden {
		t.Fatalf("tampered status = %d, want 403", tampered.StatusCode)
	}
}
