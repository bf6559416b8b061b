package domain

import "time"

// Slide types understood by the front-end renderer.
const (
	SlideTitle      = "title"
	SlideContent    = "content"
	SlideComparison = "comparison"
	SlideChart      = "chart"
	SlideQuote      = "quote"
	SlideImage      = "image"
	SlideConclusion = "conclusion"
)

// ChartData describes the dataset rendered on a chart slide.
type ChartData struct {
	Type   string    `json:"type,omitempty"`
	Label  string    `json:"label,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

// Column is one side of a comparison slide.
type Column struct {
	Title  string   `json:"title,omitempty"`
	Points []string `json:"points,omitempty"`
}

// Quote carries the text and attribution for a quote slide.
type Quote struct {
	Text   string `json:"text,omitempty"`
	Author string `json:"author,omitempty"`
}

// Slide is a single slide as produced by the structure stage. The
// EnhancedNotes and Transition fields are only populated when the
// enhancement stage succeeds.
type Slide struct {
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Content     []string   `json:"content,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	ChartData   *ChartData `json:"chartData,omitempty"`
	ImageSearch string     `json:"imageSearch,omitempty"`
	Quote       *Quote     `json:"quote,omitempty"`
	LeftColumn  *Column    `json:"leftColumn,omitempty"`
	RightColumn *Column    `json:"rightColumn,omitempty"`

	EnhancedNotes string `json:"enhancedNotes,omitempty"`
	Transition    string `json:"transition,omitempty"`
}

// Theme holds the color palette suggested by the model.
type Theme struct {
	Primary    string `json:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty"`
	Background string `json:"background,omitempty"`
	Text       string `json:"text,omitempty"`
}

// PresentationDocument is the merged result of both generation stages.
// It lives for a single request/response cycle and is never persisted.
type PresentationDocument struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle"`
	Slides       []Slide   `json:"slides"`
	Theme        Theme     `json:"theme"`
	Topic        string    `json:"topic"`
	CreatedAt    time.Time `json:"createdAt"`
	KeyTakeaways []string  `json:"keyTakeaways,omitempty"`
}

// EnhancedSlide is one per-slide entry of the enhancement stage output.
// SlideIndex values outside the document's slide range are ignored on merge.
type EnhancedSlide struct {
	SlideIndex    int    `json:"slideIndex"`
	EnhancedNotes string `json:"enhancedNotes"`
	Transition    string `json:"transition"`
}

// EnhancementResult is the parsed output of the enhancement stage. It is
// consumed once by the merge step and then discarded.
type EnhancementResult struct {
	EnhancedSlides []EnhancedSlide `json:"enhancedSlides"`
	KeyTakeaways   []string        `json:"keyTakeaways"`
}
