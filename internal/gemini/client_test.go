package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"signature-lab/internal/card"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func textEnvelope(text string) string {
	env := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(env)
	return string(raw)
}

func TestGenerateQuotes_SendsSchemaAndParsesArray(t *testing.T) {
	var captured generateContentRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("x-goog-api-key = %q, want test-key", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/"+modelText+":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(textEnvelope(`[{"text":"Stay hungry.","author":"S. Jobs"}]`)))
	})

	quotes, err := c.GenerateQuotes(context.Background(), card.TextPrompt{Instruction: "i", System: "s"})
	if err != nil {
		t.Fatalf("GenerateQuotes() error: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Text != "Stay hungry." || quotes[0].Author != "S. Jobs" {
		t.Errorf("quotes = %+v", quotes)
	}

	cfg := captured.GenerationConfig
	if cfg.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q", cfg.ResponseMimeType)
	}
	if cfg.ResponseSchema == nil || cfg.ResponseSchema.Type != "ARRAY" {
		t.Errorf("response schema = %+v, want strict ARRAY schema", cfg.ResponseSchema)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "s" {
		t.Errorf("system instruction not forwarded: %+v", captured.SystemInstruction)
	}
}

func TestGenerateQuotes_EmptyBodyIsTypedError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textEnvelope("")))
	})

	_, err := c.GenerateQuotes(context.Background(), card.TextPrompt{Instruction: "i"})
	if KindOf(err) != KindEmptyResponse {
		t.Errorf("error = %v, want empty-response kind", err)
	}
}

func TestGenerateContent_ParsesStrictObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textEnvelope(`{"mainMessage":"m","alternativeMessage":"a","bgTheme":"b","recommendedSeason":"r"}`)))
	})

	out, err := c.GenerateContent(context.Background(), card.TextPrompt{Instruction: "i"})
	if err != nil {
		t.Fatalf("GenerateContent() error: %v", err)
	}
	if out.MainMessage != "m" || out.AlternativeMessage != "a" || out.BgTheme != "b" || out.RecommendedSeason != "r" {
		t.Errorf("content = %+v", out)
	}
}

func TestGenerateContent_MalformedBodyIsTypedError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textEnvelope("not json at all")))
	})

	_, err := c.GenerateContent(context.Background(), card.TextPrompt{Instruction: "i"})
	if KindOf(err) != KindEmptyResponse {
		t.Errorf("error = %v, want empty-response kind", err)
	}
}

func TestGenerateImage_ReturnsInlineDataAsDataURI(t *testing.T) {
	var captured generateContentRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/"+modelImage+":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"aW1n"}}]}}]}`))
	})

	uri, err := c.GenerateImage(context.Background(), card.ImagePrompt{
		Prompt:         "p",
		ReferenceImage: "data:image/jpeg;base64,cmVm",
		AspectRatio:    "16:9",
	})
	if err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if uri != "data:image/png;base64,aW1n" {
		t.Errorf("uri = %q", uri)
	}

	cfg := captured.GenerationConfig
	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "IMAGE" {
		t.Errorf("responseModalities = %v", cfg.ResponseModalities)
	}
	if cfg.ImageConfig == nil || cfg.ImageConfig.AspectRatio != "16:9" {
		t.Errorf("imageConfig = %+v", cfg.ImageConfig)
	}

	parts := captured.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("reference image not attached inline: %+v", parts)
	}
	if parts[1].InlineData.MimeType != "image/jpeg" || parts[1].InlineData.Data != "cmVm" {
		t.Errorf("inline reference = %+v", parts[1].InlineData)
	}
}

func TestGenerateImage_MissingInlineDataFallsBackToPlaceholder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textEnvelope("a textual apology instead of pixels")))
	})

	uri, err := c.GenerateImage(context.Background(), card.ImagePrompt{Prompt: "p"})
	if err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if uri != placeholderImageURL {
		t.Errorf("uri = %q, want placeholder", uri)
	}
}

func TestStartVideo_SubmitsJobAndReturnsHandle(t *testing.T) {
	var captured videoRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/"+modelVideo+":predictLongRunning") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"name":"operations/op-1","done":false}`))
	})

	op, err := c.StartVideo(context.Background(), card.VideoPrompt{
		Prompt:      "p",
		SeedImage:   "data:image/png;base64,c2VlZA==",
		AspectRatio: "16:9",
		Resolution:  "1080p",
		Count:       1,
	})
	if err != nil {
		t.Fatalf("StartVideo() error: %v", err)
	}
	if op.Name != "operations/op-1" || op.Done {
		t.Errorf("op = %+v", op)
	}

	if len(captured.Instances) != 1 {
		t.Fatalf("instances = %+v", captured.Instances)
	}
	inst := captured.Instances[0]
	if inst.Image == nil || inst.Image.BytesBase64 != "c2VlZA==" || inst.Image.MimeType != "image/png" {
		t.Errorf("seed image = %+v", inst.Image)
	}
	if captured.Parameters.NumberOfVideos != 1 || captured.Parameters.Resolution != "1080p" || captured.Parameters.AspectRatio != "16:9" {
		t.Errorf("parameters = %+v", captured.Parameters)
	}
}

func TestPollVideo_DecodesFinishedOperation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/operations/op-1") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"name": "operations/op-1",
			"done": true,
			"response": {
				"generateVideoResponse": {
					"generatedSamples": [{"video": {"uri": "https://example/video?alt=media"}}]
				}
			}
		}`))
	})

	op, err := c.PollVideo(context.Background(), VideoOperation{Name: "operations/op-1"})
	if err != nil {
		t.Fatalf("PollVideo() error: %v", err)
	}
	if !op.Done || op.VideoURI != "https://example/video?alt=media" {
		t.Errorf("op = %+v", op)
	}
}

func TestClassifyStatus_CredentialSignatures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unauthorized", 401, `{}`, KindCredential},
		{"forbidden", 403, `{}`, KindCredential},
		{"unauthenticated status", 400, `{"error":{"status":"UNAUTHENTICATED","message":"x"}}`, KindCredential},
		{"permission denied status", 429, `{"error":{"status":"PERMISSION_DENIED","message":"x"}}`, KindCredential},
		{"bad api key message", 400, `{"error":{"message":"API key not valid. Please pass a valid API key."}}`, KindCredential},
		{"revoked entity", 404, `{"error":{"message":"Requested entity was not found."}}`, KindCredential},
		{"plain bad request", 400, `{"error":{"message":"unsupported field"}}`, KindRemote},
		{"rate limit", 429, `{"error":{"status":"RESOURCE_EXHAUSTED","message":"quota"}}`, KindRemote},
		{"server error", 500, `boom`, KindRemote},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStatus(tc.status, []byte(tc.body))
			if KindOf(err) != tc.want {
				t.Errorf("kind = %v, want %v (err: %v)", KindOf(err), tc.want, err)
			}
		})
	}
}

func TestDo_ErrorStatusSurfacesEnvelopeMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"status":"PERMISSION_DENIED","message":"key lacks permission"}}`))
	})

	_, err := c.GenerateQuotes(context.Background(), card.TextPrompt{Instruction: "i"})
	if !IsCredential(err) {
		t.Fatalf("error = %v, want credential kind", err)
	}
	if !strings.Contains(err.Error(), "key lacks permission") {
		t.Errorf("error message lost the envelope detail: %v", err)
	}
}

func TestDataURLToInlineData(t *testing.T) {
	inline, ok := dataURLToInlineData("data:image/webp;base64,d2Vi", "image/png")
	if !ok || inline.MimeType != "image/webp" || inline.Data != "d2Vi" {
		t.Errorf("inline = %+v ok=%v", inline, ok)
	}

	inline, ok = dataURLToInlineData("cmF3", "image/png")
	if !ok || inline.MimeType != "image/png" || inline.Data != "cmF3" {
		t.Errorf("bare payload inline = %+v ok=%v", inline, ok)
	}

	if _, ok := dataURLToInlineData("  ", "image/png"); ok {
		t.Error("blank input should not produce inline data")
	}
}
