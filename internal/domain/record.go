package domain

// GenerationRecord is a best-effort audit entry written after a generate
// call. It records the outcome only, never the generated document.
type GenerationRecord struct {
	PK         string
	SK         string
	RequestID  string
	Topic      string
	SlideCount int
	Enhanced   bool
	Outcome    string
	DurationMs int64
	TTL        int64
}
