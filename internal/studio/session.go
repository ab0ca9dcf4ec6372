package studio

import (
	"sync"
	"time"

	"signature-lab/internal/card"
)

// Operation names one of the user-triggered async flows. At most one call
// per operation is in flight per session; different operations run
// independently.
type Operation string

const (
	OpQuoteFetch      Operation = "quoteFetch"
	OpContentGenerate Operation = "contentGenerate"
	OpVisualGenerate  Operation = "visualGenerate"
)

// Session owns everything a single composing user can see and edit. No
// persistence: the state lives and dies with the session.
type Session struct {
	mu sync.Mutex

	form card.FormState

	quotes        []card.QuoteCandidate
	selectedQuote int

	content        *card.GeneratedContent
	currentMessage string

	// Exactly one of backgroundImage/backgroundVideo is live at a time.
	backgroundImage string
	backgroundVideo string

	running map[Operation]string

	lastActivity time.Time
}

// Snapshot is a consistent copy of the session handed to presentation.
type Snapshot struct {
	Form            card.FormState
	Quotes          []card.QuoteCandidate
	SelectedQuote   int
	Content         *card.GeneratedContent
	CurrentMessage  string
	BackgroundImage string
	BackgroundVideo string
	Busy            map[Operation]string
	Typography      card.StyleParameters
}

func NewSession() *Session {
	return &Session{
		form:          card.DefaultForm(),
		selectedQuote: -1,
		running:       make(map[Operation]string),
		lastActivity:  time.Now(),
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	busy := make(map[Operation]string, len(s.running))
	for op, msg := range s.running {
		busy[op] = msg
	}

	quotes := make([]card.QuoteCandidate, len(s.quotes))
	copy(quotes, s.quotes)

	var content *card.GeneratedContent
	if s.content != nil {
		c := *s.content
		content = &c
	}

	return Snapshot{
		Form:            s.form,
		Quotes:          quotes,
		SelectedQuote:   s.selectedQuote,
		Content:         content,
		CurrentMessage:  s.currentMessage,
		BackgroundImage: s.backgroundImage,
		BackgroundVideo: s.backgroundVideo,
		Busy:            busy,
		Typography:      card.ResolveTypography(s.currentMessage, s.form),
	}
}

func (s *Session) Form() card.FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Session) UpdateForm(fn func(*card.FormState)) card.FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		fn(&s.form)
	}
	s.lastActivity = time.Now()
	return s.form
}

// SelectQuote picks a candidate by index; out-of-range indices clear the
// selection.
func (s *Session) SelectQuote(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.quotes) {
		s.selectedQuote = -1
		return
	}
	s.selectedQuote = idx
}

// SetCurrentMessage records a direct user edit. Edits diverge from the
// generated mainMessage and are discarded by the next regeneration.
func (s *Session) SetCurrentMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentMessage = message
}

// SwapToAlternative replaces the current message with the generated
// alternative when one exists. Returns false when the caller should fall
// back to a fresh generation.
func (s *Session) SwapToAlternative() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.content == nil || s.content.AlternativeMessage == "" {
		return false
	}
	s.currentMessage = s.content.AlternativeMessage
	return true
}

func (s *Session) selectedQuoteText() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedQuote < 0 || s.selectedQuote >= len(s.quotes) {
		return "", false
	}
	q := s.quotes[s.selectedQuote]
	return q.Text + "\n- " + q.Author, true
}

func (s *Session) hasContent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content != nil
}

// begin marks op running; false means a call is already in flight and the
// trigger is a no-op.
func (s *Session) begin(op Operation, progress string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, inFlight := s.running[op]; inFlight {
		return false
	}
	s.running[op] = progress
	s.lastActivity = time.Now()
	return true
}

func (s *Session) end(op Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, op)
}

func (s *Session) setQuotes(quotes []card.QuoteCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = quotes
	if len(quotes) > 0 {
		s.selectedQuote = 0
	} else {
		s.selectedQuote = -1
	}
}

// setContent replaces the generated content wholesale. Any in-progress
// user edits to the current message are intentionally lost.
func (s *Session) setContent(content card.GeneratedContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = &content
	s.currentMessage = content.MainMessage
	if content.RecommendedSeason != "" {
		s.form.DesignRequirement = content.RecommendedSeason
	}
}

func (s *Session) setBackgroundImage(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backgroundImage = uri
	s.backgroundVideo = ""
}

func (s *Session) setBackgroundVideo(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backgroundVideo = uri
	s.backgroundImage = ""
}

// Store keeps one Session per key (web session id, chat user).
type Store struct {
	mu sync.Mutex
	m  map[string]*Session
}

func NewStore() *Store {
	return &Store{m: make(map[string]*Session)}
}

func (st *Store) Get(key string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.m[key]
	return s, ok
}

func (st *Store) GetOrCreate(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.m[key]; ok {
		return s
	}
	s := NewSession()
	st.m[key] = s
	return s
}

func (st *Store) Reset(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := NewSession()
	st.m[key] = s
	return s
}
