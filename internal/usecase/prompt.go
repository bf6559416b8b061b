package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"deckforge/internal/domain"
)

// Only a prefix of the deck is sent to the enhancement stage to bound cost
// and latency regardless of total slide count.
const enhancementSlideLimit = 5

func structureMessages(topic string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: structureSystemPrompt()},
		{Role: domain.RoleUser, Content: fmt.Sprintf("Create a presentation about: %s", topic)},
	}
}

func structureSystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are an expert presentation designer.",
		"",
		"Task:",
		"Create a complete slide deck for the topic supplied by the user.",
		"",
		"Deck Rules:",
		"1) Produce between 8 and 15 slides.",
		"2) Use only these slide types: title, content, comparison, chart, quote, image, conclusion.",
		"3) Open with a title slide and close with a conclusion slide.",
		"4) Give every slide concise speaker notes.",
		"5) Chart slides must include chartData with labels and numeric values.",
		"6) Comparison slides must include leftColumn and rightColumn, each with a title and points.",
		"7) Image slides must include an imageSearch phrase describing the picture to find.",
		"8) Quote slides must include quote with text and author.",
		"9) Pick a theme of four complementary hex colors.",
		"",
		"Output Contract:",
		structureOutputContract(),
	}, "\n")
}

func structureOutputContract() string {
	return "Return a single JSON object and nothing else. Shape: " +
		`{"title":string,"subtitle":string,"slides":[{"type":string,"title":string,` +
		`"content":[string],"notes":string,` +
		`"chartData":{"type":string,"label":string,"labels":[string],"values":[number]},` +
		`"imageSearch":string,"quote":{"text":string,"author":string},` +
		`"leftColumn":{"title":string,"points":[string]},` +
		`"rightColumn":{"title":string,"points":[string]}}],` +
		`"theme":{"primary":string,"secondary":string,"background":string,"text":string}}. ` +
		"Omit optional slide fields that do not apply to the slide type. " +
		"Do not wrap the JSON in markdown code fences."
}

func enhancementMessages(doc *domain.PresentationDocument) ([]domain.ChatMessage, error) {
	slides := doc.Slides
	if len(slides) > enhancementSlideLimit {
		slides = slides[:enhancementSlideLimit]
	}

	type slideSummary struct {
		SlideIndex int      `json:"slideIndex"`
		Type       string   `json:"type"`
		Title      string   `json:"title"`
		Content    []string `json:"content,omitempty"`
		Notes      string   `json:"notes,omitempty"`
	}
	summaries := make([]slideSummary, 0, len(slides))
	for i, sl := range slides {
		summaries = append(summaries, slideSummary{
			SlideIndex: i,
			Type:       sl.Type,
			Title:      sl.Title,
			Content:    sl.Content,
			Notes:      sl.Notes,
		})
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("usecase: marshal slide summaries: %w", err)
	}

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: enhancementSystemPrompt()},
		{Role: domain.RoleUser, Content: fmt.Sprintf("Presentation title: %s\n\nSlides:\n%s", doc.Title, payload)},
	}, nil
}

func enhancementSystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a presentation coach reviewing a slide deck.",
		"",
		"Task:",
		"For each slide provided, write expanded speaker notes a presenter could read aloud,",
		"and a one-sentence transition into the next slide.",
		"Then distill the key takeaways of the deck as a whole.",
		"",
		"Output Contract:",
		`Return a single JSON object and nothing else. Shape: ` +
			`{"enhancedSlides":[{"slideIndex":number,"enhancedNotes":string,"transition":string}],` +
			`"keyTakeaways":[string]}. ` +
			"Use the slideIndex values exactly as given. " +
			"Do not wrap the JSON in markdown code fences.",
	}, "\n")
}

// stripCodeFence removes one optional leading ```json or ``` marker and one
// optional trailing ``` marker, trimming whitespace before and after.
// Unfenced input passes through unchanged apart from trimming.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutSuffix(s, "```"); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

func parseStructure(raw string) (*domain.PresentationDocument, error) {
	var doc domain.PresentationDocument
	if err := decodeSingleJSON(stripCodeFence(raw), &doc); err != nil {
		return nil, fmt.Errorf("usecase: decode presentation structure: %w", err)
	}
	return &doc, nil
}

func parseEnhancement(raw string) (*domain.EnhancementResult, error) {
	var res domain.EnhancementResult
	if err := decodeSingleJSON(stripCodeFence(raw), &res); err != nil {
		return nil, fmt.Errorf("usecase: decode enhancement result: %w", err)
	}
	return &res, nil
}

// decodeSingleJSON decodes exactly one JSON value against the expected
// shape, rejecting unknown fields and trailing data.
func decodeSingleJSON(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple JSON values")
		}
		return fmt.Errorf("trailing data: %w", err)
	}
	return nil
}
