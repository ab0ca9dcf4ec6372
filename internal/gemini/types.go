package gemini

// VideoOperation is the opaque handle of a long-running video job. The
// caller re-submits it to PollVideo until Done is reported.
type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string
}
