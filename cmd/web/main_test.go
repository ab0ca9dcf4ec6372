package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signature-lab/internal/export"
	"signature-lab/internal/studio"
)

func testServer() *server {
	return &server{
		sessions: studio.NewStore(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  time.Second,
	}
}

func sessionRequest(method, target, sessionID, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.SetPathValue("id", sessionID)
	return req
}

func TestHandleForm_UpdatesColorSettings(t *testing.T) {
	s := testServer()
	s.sessions.GetOrCreate("s1")

	body := `{
		"textColor": "#fafafa",
		"textOpacity": 0.9,
		"shadowIntensity": 6,
		"shadowColor": "rgba(0,0,0,0.5)",
		"frameColor": "#112233",
		"overlayOpacity": 0.25
	}`
	rec := httptest.NewRecorder()
	s.handleForm(rec, sessionRequest(http.MethodPost, "/api/sessions/s1/form", "s1", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	sess, _ := s.sessions.Get("s1")
	c := sess.Form().Colors
	if c.Text != "#fafafa" || c.TextOpacity != 0.9 {
		t.Errorf("text color settings not applied: %+v", c)
	}
	if c.ShadowIntensity != 6 || c.ShadowColor != "rgba(0,0,0,0.5)" {
		t.Errorf("shadow settings not applied: %+v", c)
	}
	if c.Frame != "#112233" || c.OverlayOpacity != 0.25 {
		t.Errorf("frame and overlay settings not applied: %+v", c)
	}
}

func TestHandleForm_OmittedFieldsStayUntouched(t *testing.T) {
	s := testServer()
	sess := s.sessions.GetOrCreate("s1")
	before := sess.Form().Colors

	rec := httptest.NewRecorder()
	s.handleForm(rec, sessionRequest(http.MethodPost, "/api/sessions/s1/form", "s1", `{"sender":"CEO Kim"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if got := sess.Form().Colors; got != before {
		t.Errorf("colors changed by an unrelated update: %+v", got)
	}
	if got := sess.Form().Sender; got != "CEO Kim" {
		t.Errorf("sender %q, want CEO Kim", got)
	}
}

type staticRasterizer struct {
	data []byte
}

func (r staticRasterizer) RenderPNG(ctx context.Context, snap studio.Snapshot, scale int) ([]byte, error) {
	return r.data, nil
}

func TestHandleExport_WritesCardFile(t *testing.T) {
	s := testServer()
	s.exporter = export.New(export.Options{
		Rasterizer: staticRasterizer{data: []byte("png-bytes")},
		OutputDir:  t.TempDir(),
	})
	s.sessions.GetOrCreate("s1")

	rec := httptest.NewRecorder()
	s.handleExport(rec, sessionRequest(http.MethodPost, "/api/sessions/s1/export", "s1", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp["path"], "Signature_Card_") {
		t.Errorf("path %q, want a timestamped card file", resp["path"])
	}
}

func TestHandleExport_NoBackgroundIsClientError(t *testing.T) {
	s := testServer()
	s.exporter = export.New(export.Options{
		Rasterizer: export.BackgroundRasterizer{},
		OutputDir:  t.TempDir(),
	})
	s.sessions.GetOrCreate("s1")

	rec := httptest.NewRecorder()
	s.handleExport(rec, sessionRequest(http.MethodPost, "/api/sessions/s1/export", "s1", ""))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status %d, want 422 with no background image", rec.Code)
	}
}

func TestHandleShare_WithoutTargetIsNotImplemented(t *testing.T) {
	s := testServer()
	s.exporter = export.New(export.Options{
		Rasterizer: staticRasterizer{data: []byte("png-bytes")},
	})
	s.sessions.GetOrCreate("s1")

	rec := httptest.NewRecorder()
	s.handleShare(rec, sessionRequest(http.MethodPost, "/api/sessions/s1/share", "s1", ""))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status %d, want 501 without a share target", rec.Code)
	}
}
