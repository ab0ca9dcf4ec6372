package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"signature-lab/internal/card"
	"signature-lab/internal/config"
	"signature-lab/internal/export"
	"signature-lab/internal/gemini"
	"signature-lab/internal/httpclient"
	"signature-lab/internal/keygate"
	"signature-lab/internal/studio"
)

type server struct {
	orch     *studio.Orchestrator
	sessions *studio.Store
	gate     *keygate.Gate
	exporter *export.Exporter
	logger   *slog.Logger
	timeout  time.Duration
}

type apiError struct {
	Error string `json:"error"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(false)
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	gate := keygate.New(keygate.Options{
		Selector: keygate.StaticSelector{Key: cfg.GeminiAPIKey},
		Logger:   logger,
		OnChange: func(status keygate.Status) {
			logger.Info("credential status changed", "status", status.String())
		},
	})

	orch := studio.New(studio.Options{
		Service:               gem,
		Gate:                  gate,
		Logger:                logger,
		PollInterval:          cfg.PollInterval,
		ForwardReferenceImage: cfg.ForwardReferenceImage,
	})

	exporter := export.New(export.Options{
		Rasterizer: export.BackgroundRasterizer{},
		OutputDir:  cfg.ExportDir,
		Logger:     logger,
	})

	s := &server{
		orch:     orch,
		sessions: studio.NewStore(),
		gate:     gate,
		exporter: exporter,
		logger:   logger,
		timeout:  cfg.RequestTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate.Probe(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/key/select", s.handleKeySelect)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSnapshot)
	mux.HandleFunc("POST /api/sessions/{id}/form", s.handleForm)
	mux.HandleFunc("POST /api/sessions/{id}/message", s.handleMessage)
	mux.HandleFunc("POST /api/sessions/{id}/alternative", s.handleAlternative)
	mux.HandleFunc("POST /api/sessions/{id}/quotes", s.handleQuotes)
	mux.HandleFunc("POST /api/sessions/{id}/quotes/select", s.handleQuoteSelect)
	mux.HandleFunc("POST /api/sessions/{id}/content", s.handleContent)
	mux.HandleFunc("POST /api/sessions/{id}/visual", s.handleVisual)
	mux.HandleFunc("POST /api/sessions/{id}/export", s.handleExport)
	mux.HandleFunc("POST /api/sessions/{id}/share", s.handleShare)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           withLogging(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web started", "addr", cfg.WebAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"credential": s.gate.Status().String()})
}

func (s *server) handleKeySelect(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.EnsureSelected(r.Context()); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"credential": s.gate.Status().String()})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	s.sessions.GetOrCreate(id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(sess.Snapshot()))
}

type formUpdate struct {
	Sender            *string  `json:"sender"`
	Occasion          *string  `json:"occasion"`
	Audience          *string  `json:"audience"`
	Tone              *string  `json:"tone"`
	QuoteTheme        *string  `json:"quoteTheme"`
	Requirement       *string  `json:"requirement"`
	ImageType         *string  `json:"imageType"`
	StylePreset       *string  `json:"stylePreset"`
	LayoutFrame       *string  `json:"layoutFrame"`
	TextFrame         *string  `json:"textFrame"`
	DesignRequirement *string  `json:"designRequirement"`
	RefinementText    *string  `json:"refinementText"`
	Font              *string  `json:"font"`
	Align             *string  `json:"align"`
	Bold              *bool    `json:"bold"`
	Italic            *bool    `json:"italic"`
	FontSizeScale     *float64 `json:"fontSizeScale"`
	LetterSpacing     *float64 `json:"letterSpacingScale"`
	LineHeightScale   *float64 `json:"lineHeightScale"`
	TextColor         *string  `json:"textColor"`
	TextOpacity       *float64 `json:"textOpacity"`
	ShadowIntensity   *float64 `json:"shadowIntensity"`
	ShadowColor       *string  `json:"shadowColor"`
	FrameColor        *string  `json:"frameColor"`
	OverlayOpacity    *float64 `json:"overlayOpacity"`
	ReferenceImage    *string  `json:"referenceImage"`
	AspectRatio       *string  `json:"aspectRatio"`
}

func (s *server) handleForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var upd formUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}

	sess.UpdateForm(func(f *card.FormState) {
		applyString(&f.Sender, upd.Sender)
		applyString(&f.Occasion, upd.Occasion)
		applyString(&f.Audience, upd.Audience)
		applyString(&f.Tone, upd.Tone)
		applyString(&f.QuoteTheme, upd.QuoteTheme)
		applyString(&f.Requirement, upd.Requirement)
		applyString(&f.ImageType, upd.ImageType)
		applyString(&f.StylePreset, upd.StylePreset)
		applyString(&f.LayoutFrame, upd.LayoutFrame)
		applyString(&f.TextFrame, upd.TextFrame)
		applyString(&f.DesignRequirement, upd.DesignRequirement)
		applyString(&f.RefinementText, upd.RefinementText)
		applyString(&f.Font, upd.Font)
		applyString(&f.Align, upd.Align)
		applyString(&f.ReferenceImage, upd.ReferenceImage)
		applyString(&f.AspectRatio, upd.AspectRatio)
		if upd.Bold != nil {
			f.Bold = *upd.Bold
		}
		if upd.Italic != nil {
			f.Italic = *upd.Italic
		}
		if upd.FontSizeScale != nil {
			f.Scales.FontSize = *upd.FontSizeScale
		}
		if upd.LetterSpacing != nil {
			f.Scales.LetterSpacing = *upd.LetterSpacing
		}
		if upd.LineHeightScale != nil {
			f.Scales.LineHeight = *upd.LineHeightScale
		}
		if upd.TextColor != nil {
			f.Colors.Text = *upd.TextColor
		}
		if upd.TextOpacity != nil {
			f.Colors.TextOpacity = *upd.TextOpacity
		}
		if upd.ShadowIntensity != nil {
			f.Colors.ShadowIntensity = *upd.ShadowIntensity
		}
		applyString(&f.Colors.ShadowColor, upd.ShadowColor)
		applyString(&f.Colors.Frame, upd.FrameColor)
		if upd.OverlayOpacity != nil {
			f.Colors.OverlayOpacity = *upd.OverlayOpacity
		}
	})

	writeJSON(w, http.StatusOK, toSnapshotResponse(sess.Snapshot()))
}

func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}

	sess.SetCurrentMessage(body.Message)
	writeJSON(w, http.StatusOK, toSnapshotResponse(sess.Snapshot()))
}

func (s *server) handleAlternative(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.runOperation(w, r, sess, func(ctx context.Context) error {
		return s.orch.RecommendAlternative(ctx, sess)
	})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	path, err := s.exporter.Download(r.Context(), sess.Snapshot())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *server) handleShare(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	err := s.exporter.Share(r.Context(), sess.Snapshot())
	switch {
	case errors.Is(err, export.ErrShareUnavailable):
		writeJSON(w, http.StatusNotImplemented, apiError{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"shared": true})
	}
}

func (s *server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.runOperation(w, r, sess, func(ctx context.Context) error {
		return s.orch.FetchQuotes(ctx, sess)
	})
}

func (s *server) handleQuoteSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}

	sess.SelectQuote(body.Index)
	writeJSON(w, http.StatusOK, toSnapshotResponse(sess.Snapshot()))
}

func (s *server) handleContent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var body struct {
		QuoteOnly bool `json:"quoteOnly"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
			return
		}
	}

	s.runOperation(w, r, sess, func(ctx context.Context) error {
		return s.orch.GenerateContent(ctx, sess, body.QuoteOnly)
	})
}

func (s *server) handleVisual(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}

	kind := studio.VisualImage
	if body.Kind == string(studio.VisualVideo) {
		kind = studio.VisualVideo
	}

	s.runOperation(w, r, sess, func(ctx context.Context) error {
		return s.orch.GenerateVisual(ctx, sess, kind)
	})
}

func (s *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"occasions":    card.Occasions,
		"audiences":    card.Audiences,
		"tones":        card.Tones,
		"quoteThemes":  card.QuoteThemes,
		"imageTypes":   card.ImageTypes,
		"stylePresets": card.StylePresets,
		"layoutFrames": card.LayoutFrames,
		"textFrames":   card.TextFrames,
		"fonts":        card.Fonts,
		"aspectRatios": card.AspectRatios,
	})
}

// runOperation executes one orchestrator flow with the request-scoped
// timeout and maps its error taxonomy onto HTTP statuses.
func (s *server) runOperation(w http.ResponseWriter, r *http.Request, sess *studio.Session, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		status := http.StatusBadGateway
		var ve *studio.ValidationError
		switch {
		case errors.As(err, &ve):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, studio.ErrBusy):
			status = http.StatusConflict
		}
		writeJSON(w, status, apiError{Error: studio.UserMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(sess.Snapshot()))
}

func (s *server) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown session"})
		return nil, false
	}
	return sess, true
}

type snapshotResponse struct {
	Form            card.FormState              `json:"form"`
	Quotes          []card.QuoteCandidate       `json:"quotes"`
	SelectedQuote   int                         `json:"selectedQuote"`
	Content         *card.GeneratedContent      `json:"content"`
	CurrentMessage  string                      `json:"currentMessage"`
	BackgroundImage string                      `json:"backgroundImage,omitempty"`
	BackgroundVideo string                      `json:"backgroundVideo,omitempty"`
	Busy            map[studio.Operation]string `json:"busy"`
	Typography      card.StyleParameters        `json:"typography"`
}

func toSnapshotResponse(snap studio.Snapshot) snapshotResponse {
	return snapshotResponse{
		Form:            snap.Form,
		Quotes:          snap.Quotes,
		SelectedQuote:   snap.SelectedQuote,
		Content:         snap.Content,
		CurrentMessage:  snap.CurrentMessage,
		BackgroundImage: snap.BackgroundImage,
		BackgroundVideo: snap.BackgroundVideo,
		Busy:            snap.Busy,
		Typography:      snap.Typography,
	}
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
