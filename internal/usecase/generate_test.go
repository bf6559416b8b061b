package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deckforge/internal/domain"
	"deckforge/internal/integrations/llm"
)

type completion struct {
	text string
	err  error
}

type mockLLM struct {
	responses []completion
	calls     int
	messages  [][]domain.ChatMessage
	health    llm.Health
}

func (m *mockLLM) Complete(_ context.Context, msgs []domain.ChatMessage, _ int) (string, error) {
	m.messages = append(m.messages, msgs)
	if len(m.responses) == 0 {
		return "", errors.New("no llm response configured")
	}
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return m.responses[idx].text, m.responses[idx].err
}

func (m *mockLLM) Health() llm.Health {
	return m.health
}

type recorded struct {
	topic      string
	slideCount int
	enhanced   bool
	outcome    string
}

type mockRecorder struct {
	entries []recorded
	err     error
}

func (m *mockRecorder) RecordGeneration(_ context.Context, topic string, slideCount int, enhanced bool, outcome string, _ time.Duration) error {
	m.entries = append(m.entries, recorded{topic: topic, slideCount: slideCount, enhanced: enhanced, outcome: outcome})
	return m.err
}

const structureJSON = `{
	"title": "Renewable Energy",
	"subtitle": "Powering the Future",
	"slides": [
		{"type": "title", "title": "Renewable Energy", "notes": "opening"},
		{"type": "content", "title": "Solar", "content": ["cheap", "scalable"], "notes": "solar notes"}
	],
	"theme": {"primary": "#0a6", "secondary": "#065", "background": "#fff", "text": "#111"}
}`

const enhancementJSON = `{
	"enhancedSlides": [
		{"slideIndex": 0, "enhancedNotes": "richer opening", "transition": "into solar"},
		{"slideIndex": 3, "enhancedNotes": "ignored", "transition": "ignored"},
		{"slideIndex": -1, "enhancedNotes": "ignored", "transition": "ignored"}
	],
	"keyTakeaways": ["renewables are viable", "solar leads"]
}`

func newService(t *testing.T, client *mockLLM, rec *mockRecorder, keyConfigured bool) *GenerateService {
	t.Helper()
	svc, err := NewGenerateService(client, rec, "model-x", keyConfigured, nil)
	require.NoError(t, err)
	return svc
}

func TestGenerate_EmptyTopic_NoUpstreamCall(t *testing.T) {
	client := &mockLLM{}
	svc := newService(t, client, &mockRecorder{}, true)

	_, err := svc.Generate(context.Background(), GenerateInput{Topic: "   "})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInvalidInput, ucErr.Code)
	require.Zero(t, client.calls)
}

func TestGenerate_HappyPath_MergesEnhancement(t *testing.T) {
	client := &mockLLM{responses: []completion{{text: structureJSON}, {text: enhancementJSON}}}
	rec := &mockRecorder{}
	svc := newService(t, client, rec, true)

	out, err := svc.Generate(context.Background(), GenerateInput{Topic: "Renewable Energy"})
	require.NoError(t, err)
	require.Equal(t, 2, client.calls)

	doc := out.Document
	require.Equal(t, "Renewable Energy", doc.Title)
	require.Len(t, doc.Slides, 2)

	// In-range entry merged in place.
	require.Equal(t, "richer opening", doc.Slides[0].EnhancedNotes)
	require.Equal(t, "into solar", doc.Slides[0].Transition)
	// Out-of-range entries, negative included, silently skipped.
	require.Empty(t, doc.Slides[1].EnhancedNotes)
	require.Equal(t, []string{"renewables are viable", "solar leads"}, doc.KeyTakeaways)

	// Finalize fields.
	require.NotEmpty(t, doc.ID)
	require.Equal(t, "Renewable Energy", doc.Topic)
	require.False(t, doc.CreatedAt.IsZero())

	require.Equal(t, []recorded{{topic: "Renewable Energy", slideCount: 2, enhanced: true, outcome: "complete"}}, rec.entries)
}

func TestGenerate_FreshIDPerCall(t *testing.T) {
	client := &mockLLM{responses: []completion{{text: structureJSON}, {text: enhancementJSON}}}
	svc := newService(t, client, &mockRecorder{}, true)

	first, err := svc.Generate(context.Background(), GenerateInput{Topic: "Solar"})
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), GenerateInput{Topic: "Solar"})
	require.NoError(t, err)
	require.NotEqual(t, first.Document.ID, second.Document.ID)
}

func TestGenerate_FencedStructureResponse(t *testing.T) {
	fenced := "```json\n" + `{"title":"T","subtitle":"S","slides":[],"theme":{}}` + "\n```"
	client := &mockLLM{responses: []completion{{text: fenced}, {text: enhancementJSON}}}
	svc := newService(t, client, &mockRecorder{}, true)

	out, err := svc.Generate(context.Background(), GenerateInput{Topic: "Anything"})
	require.NoError(t, err)
	require.Equal(t, "T", out.Document.Title)
	require.Empty(t, out.Document.Slides)
}

func TestGenerate_EnhancementNetworkFailureIsNonFatal(t *testing.T) {
	client := &mockLLM{responses: []completion{
		{text: structureJSON},
		{err: &llm.UpstreamError{Kind: llm.KindTimeout}},
	}}
	rec := &mockRecorder{}
	svc := newService(t, client, rec, true)

	out, err := svc.Generate(context.Background(), GenerateInput{Topic: "Wind"})
	require.NoError(t, err)

	// Stage-1 document plus id/timestamp/topic only.
	doc := out.Document
	require.Equal(t, "Renewable Energy", doc.Title)
	for _, sl := range doc.Slides {
		require.Empty(t, sl.EnhancedNotes)
		require.Empty(t, sl.Transition)
	}
	require.Nil(t, doc.KeyTakeaways)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, "Wind", doc.Topic)

	require.Len(t, rec.entries, 1)
	require.False(t, rec.entries[0].enhanced)
	require.Equal(t, "complete", rec.entries[0].outcome)
}

func TestGenerate_EnhancementParseFailureIsNonFatal(t *testing.T) {
	client := &mockLLM{responses: []completion{
		{text: structureJSON},
		{text: "Sorry, here are my thoughts instead of JSON."},
	}}
	svc := newService(t, client, &mockRecorder{}, true)

	out, err := svc.Generate(context.Background(), GenerateInput{Topic: "Wind"})
	require.NoError(t, err)
	require.Empty(t, out.Document.Slides[0].EnhancedNotes)
	require.Nil(t, out.Document.KeyTakeaways)
}

func TestGenerate_StructureParseFailureIsFatal(t *testing.T) {
	client := &mockLLM{responses: []completion{{text: "not json"}}}
	rec := &mockRecorder{}
	svc := newService(t, client, rec, true)

	_, err := svc.Generate(context.Background(), GenerateInput{Topic: "Wind"})
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorStructureParse, ucErr.Code)
	// Enhancement never attempted after a fatal structure stage.
	require.Equal(t, 1, client.calls)
	require.Equal(t, []recorded{{topic: "Wind", outcome: string(ErrorStructureParse)}}, rec.entries)
}

func TestGenerate_UpstreamErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "missing key", err: &llm.UpstreamError{Kind: llm.KindMissingKey}, want: ErrorMissingCredential},
		{name: "rate limited", err: &llm.UpstreamError{Kind: llm.KindRateLimited, Status: 429}, want: ErrorRateLimited},
		{name: "auth rejected", err: &llm.UpstreamError{Kind: llm.KindAuth, Status: 401}, want: ErrorUpstream},
		{name: "unavailable", err: &llm.UpstreamError{Kind: llm.KindUnavailable, Status: 503}, want: ErrorUpstream},
		{name: "timeout", err: &llm.UpstreamError{Kind: llm.KindTimeout}, want: ErrorUpstream},
		{name: "plain error", err: errors.New("boom"), want: ErrorInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockLLM{responses: []completion{{err: tc.err}}}
			svc := newService(t, client, &mockRecorder{}, true)

			_, err := svc.Generate(context.Background(), GenerateInput{Topic: "Wind"})
			var ucErr *Error
			require.ErrorAs(t, err, &ucErr)
			require.Equal(t, tc.want, ucErr.Code)
			require.Equal(t, 1, client.calls)
		})
	}
}

func TestGenerate_RecorderFailureSwallowed(t *testing.T) {
	client := &mockLLM{responses: []completion{{text: structureJSON}, {text: enhancementJSON}}}
	rec := &mockRecorder{err: errors.New("dynamodb down")}
	svc := newService(t, client, rec, true)

	out, err := svc.Generate(context.Background(), GenerateInput{Topic: "Wind"})
	require.NoError(t, err)
	require.NotNil(t, out.Document)
}

func TestStatus(t *testing.T) {
	checked := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	client := &mockLLM{health: llm.Health{Checked: true, Healthy: true, LastChecked: checked}}
	svc := newService(t, client, &mockRecorder{}, false)

	st := svc.Status(context.Background())
	require.False(t, st.Configured)
	require.True(t, st.Checked)
	require.True(t, st.Healthy)
	require.Equal(t, checked, st.LastChecked)
	require.Equal(t, "model-x", st.Model)
}

func TestNewGenerateService_Validation(t *testing.T) {
	_, err := NewGenerateService(nil, &mockRecorder{}, "m", true, nil)
	require.Error(t, err)

	_, err = NewGenerateService(&mockLLM{}, nil, "m", true, nil)
	require.Error(t, err)

	_, err = NewGenerateService(&mockLLM{}, &mockRecorder{}, " ", true, nil)
	require.Error(t, err)
}
