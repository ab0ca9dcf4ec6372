package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"signature-lab/internal/card"
)

const (
	modelText  = "gemini-3-flash-preview"
	modelImage = "gemini-3-pro-image-preview"
	modelVideo = "veo-3.1"
)

// placeholderImageURL stands in when an image call succeeds but carries no
// inline image data, so the card never loses its background entirely.
const placeholderImageURL = "https://images.unsplash.com/photo-1506744038136-46273834b3fb?w=1600&q=80"

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// APIKey exposes the credential for callers that must sign returned asset
// addresses (video URIs are not self-authenticating).
func (c *Client) APIKey() string {
	return c.apiKey
}

var quoteSchema = &schema{
	Type: "ARRAY",
	Items: &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"text":   {Type: "STRING"},
			"author": {Type: "STRING"},
		},
		Required: []string{"text", "author"},
	},
}

var contentSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"mainMessage":        {Type: "STRING"},
		"alternativeMessage": {Type: "STRING"},
		"bgTheme":            {Type: "STRING"},
		"recommendedSeason":  {Type: "STRING"},
	},
	Required: []string{"mainMessage", "alternativeMessage", "bgTheme", "recommendedSeason"},
}

// GenerateQuotes runs one quote call and parses the body as a strict
// QuoteCandidate array.
func (c *Client) GenerateQuotes(ctx context.Context, p card.TextPrompt) ([]card.QuoteCandidate, error) {
	req := generateContentRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: p.Instruction}}}},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: p.System}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   quoteSchema,
		},
	}

	body, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(body.firstText())
	if text == "" {
		return nil, &Error{Kind: KindEmptyResponse, Message: "quote response is empty"}
	}

	var quotes []card.QuoteCandidate
	if err := json.Unmarshal([]byte(text), &quotes); err != nil {
		return nil, &Error{Kind: KindEmptyResponse, Message: "quote response is not a valid array", Err: err}
	}
	return quotes, nil
}

// GenerateContent runs one message call and parses the body as a strict
// GeneratedContent object.
func (c *Client) GenerateContent(ctx context.Context, p card.TextPrompt) (card.GeneratedContent, error) {
	req := generateContentRequest{
		Contents:          []content{{Role: "user", Parts: []part{{Text: p.Instruction}}}},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: p.System}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   contentSchema,
		},
	}

	body, err := c.generateContent(ctx, modelText, req)
	if err != nil {
		return card.GeneratedContent{}, err
	}

	text := strings.TrimSpace(body.firstText())
	if text == "" {
		return card.GeneratedContent{}, &Error{Kind: KindEmptyResponse, Message: "content response is empty"}
	}

	var out card.GeneratedContent
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return card.GeneratedContent{}, &Error{Kind: KindEmptyResponse, Message: "content response is not a valid object", Err: err}
	}
	return out, nil
}

// GenerateImage runs one image call and returns the first inline image as
// a data URI. A success envelope with no inline data falls back to a fixed
// placeholder address instead of failing.
func (c *Client) GenerateImage(ctx context.Context, p card.ImagePrompt) (string, error) {
	parts := []part{{Text: p.Prompt}}
	if inline, ok := dataURLToInlineData(p.ReferenceImage, "image/png"); ok {
		parts = append(parts, part{InlineData: &inline})
	}

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &imageConfig{
				AspectRatio: p.AspectRatio,
				ImageSize:   "1K",
			},
		},
	}

	body, err := c.generateContent(ctx, modelImage, req)
	if err != nil {
		return "", err
	}

	for _, pt := range body.firstParts() {
		if pt.InlineData != nil && pt.InlineData.Data != "" {
			mime := pt.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return fmt.Sprintf("data:%s;base64,%s", mime, pt.InlineData.Data), nil
		}
	}

	c.logger.Warn("image response carried no inline data, using placeholder")
	return placeholderImageURL, nil
}

// StartVideo submits a video job and returns its operation handle. The
// caller drives PollVideo until the handle reports done.
func (c *Client) StartVideo(ctx context.Context, p card.VideoPrompt) (VideoOperation, error) {
	instance := videoInstance{Prompt: p.Prompt}
	if inline, ok := dataURLToInlineData(p.SeedImage, "image/png"); ok {
		instance.Image = &videoImage{BytesBase64: inline.Data, MimeType: inline.MimeType}
	}

	count := p.Count
	if count < 1 {
		count = 1
	}

	req := videoRequest{
		Instances: []videoInstance{instance},
		Parameters: videoParameters{
			NumberOfVideos: count,
			Resolution:     p.Resolution,
			AspectRatio:    p.AspectRatio,
		},
	}

	url := fmt.Sprintf("%s/%s/models/%s:predictLongRunning", c.baseURL, c.apiVersion, modelVideo)
	raw, err := c.post(ctx, url, req)
	if err != nil {
		return VideoOperation{}, err
	}

	var decoded operationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return VideoOperation{}, &Error{Kind: KindEmptyResponse, Message: "decode video operation", Err: err}
	}
	if decoded.Name == "" {
		return VideoOperation{}, &Error{Kind: KindEmptyResponse, Message: "video operation has no name"}
	}
	return decoded.toHandle(), nil
}

// PollVideo re-fetches the current state of a video operation.
func (c *Client) PollVideo(ctx context.Context, op VideoOperation) (VideoOperation, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, strings.TrimPrefix(op.Name, "/"))
	raw, err := c.get(ctx, url)
	if err != nil {
		return op, err
	}

	var decoded operationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return op, &Error{Kind: KindEmptyResponse, Message: "decode video operation", Err: err}
	}
	if decoded.Name == "" {
		decoded.Name = op.Name
	}
	return decoded.toHandle(), nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	raw, err := c.post(ctx, url, payload)
	if err != nil {
		return generateContentResponse{}, err
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return generateContentResponse{}, &Error{Kind: KindEmptyResponse, Message: "decode response", Err: err}
	}
	return decoded, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, bytes.NewReader(body))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	if c.httpClient == nil {
		return nil, errors.New("http client is nil")
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindRemote, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Kind: KindRemote, Message: "read response", Err: err}
	}

	if httpResp.StatusCode >= 400 {
		return nil, classifyStatus(httpResp.StatusCode, rawBody)
	}
	return rawBody, nil
}

type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyStatus converts an upstream error envelope into a typed kind so
// the orchestrator never has to match on message substrings.
func classifyStatus(statusCode int, body []byte) error {
	var env apiErrorEnvelope
	_ = json.Unmarshal(body, &env)

	message := strings.TrimSpace(env.Error.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fmt.Sprintf("service returned status %d", statusCode)
	}

	kind := KindRemote
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = KindCredential
	case env.Error.Status == "UNAUTHENTICATED" || env.Error.Status == "PERMISSION_DENIED":
		kind = KindCredential
	case statusCode == http.StatusBadRequest && strings.Contains(message, "API key"):
		kind = KindCredential
	case statusCode == http.StatusNotFound && strings.Contains(message, "was not found"):
		// A previously accepted key whose backing entity has been revoked.
		kind = KindCredential
	}

	return &Error{Kind: kind, Message: message}
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature,omitempty"`
	ResponseMimeType   string       `json:"responseMimeType,omitempty"`
	ResponseSchema     *schema      `json:"responseSchema,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type schema struct {
	Type       string             `json:"type"`
	Items      *schema            `json:"items,omitempty"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func (r generateContentResponse) firstParts() []part {
	if len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

func (r generateContentResponse) firstText() string {
	var b strings.Builder
	for _, p := range r.firstParts() {
		b.WriteString(p.Text)
	}
	return b.String()
}

type videoRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type videoInstance struct {
	Prompt string      `json:"prompt"`
	Image  *videoImage `json:"image,omitempty"`
}

type videoImage struct {
	BytesBase64 string `json:"bytesBase64Encoded"`
	MimeType    string `json:"mimeType"`
}

type videoParameters struct {
	NumberOfVideos int    `json:"numberOfVideos"`
	Resolution     string `json:"resolution,omitempty"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

func (o operationResponse) toHandle() VideoOperation {
	handle := VideoOperation{Name: o.Name, Done: o.Done}
	if samples := o.Response.GenerateVideoResponse.GeneratedSamples; len(samples) > 0 {
		handle.VideoURI = samples[0].Video.URI
	}
	return handle
}

var dataURLRegex = regexp.MustCompile(`^data:([^;]+);base64,`)

func dataURLToInlineData(dataURL string, fallbackMime string) (blob, bool) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return blob{}, false
	}

	mime := fallbackMime
	if matches := dataURLRegex.FindStringSubmatch(dataURL); len(matches) == 2 {
		mime = matches[1]
	}

	data := stripDataURLPrefix(dataURL)
	if data == "" {
		return blob{}, false
	}

	return blob{
		Data:     data,
		MimeType: mime,
	}, true
}

func stripDataURLPrefix(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
