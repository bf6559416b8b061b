package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"deckforge/internal/domain"
	"deckforge/internal/integrations/llm"
)

const (
	structureMaxTokens   = 8000
	enhancementMaxTokens = 2000

	outcomeComplete = "complete"
)

// LLMClient is the upstream adapter surface consumed by the pipeline.
type LLMClient interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, maxTokens int) (string, error)
	Health() llm.Health
}

// Recorder receives one best-effort audit entry per generate call. Write
// failures never affect the request outcome.
type Recorder interface {
	RecordGeneration(ctx context.Context, topic string, slideCount int, enhanced bool, outcome string, duration time.Duration) error
}

// GenerateService runs the two-stage generation pipeline: a fatal structure
// stage followed by a best-effort enhancement stage.
type GenerateService struct {
	llm      LLMClient
	recorder Recorder
	logger   *slog.Logger

	model         string
	keyConfigured bool
}

type GenerateInput struct {
	Topic string
}

type GenerateOutput struct {
	Document *domain.PresentationDocument
}

type StatusOutput struct {
	Configured  bool
	Checked     bool
	Healthy     bool
	LastChecked time.Time
	Model       string
}

func NewGenerateService(client LLMClient, recorder Recorder, model string, keyConfigured bool, logger *slog.Logger) (*GenerateService, error) {
	if client == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if recorder == nil {
		return nil, errors.New("usecase: recorder must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateService{
		llm:           client,
		recorder:      recorder,
		logger:        logger,
		model:         model,
		keyConfigured: keyConfigured,
	}, nil
}

// Generate produces a presentation document for the topic. Only the
// structure stage can fail the request; enhancement degrades silently to the
// structure-stage document.
func (s *GenerateService) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return GenerateOutput{}, newError(ErrorInvalidInput, "empty_topic", nil)
	}
	started := time.Now()

	doc, err := s.generateStructure(ctx, topic)
	if err != nil {
		s.record(ctx, topic, 0, false, outcomeFor(err), started)
		return GenerateOutput{}, err
	}

	enhanced := false
	if res, enhErr := s.generateEnhancement(ctx, doc); enhErr != nil {
		s.logger.Warn("enhancement stage failed, returning base document",
			"topic", topic, "err", enhErr)
	} else {
		mergeEnhancements(doc, res)
		enhanced = true
	}

	doc.ID = newUUID()
	doc.CreatedAt = time.Now().UTC()
	doc.Topic = topic

	s.record(ctx, topic, len(doc.Slides), enhanced, outcomeComplete, started)
	return GenerateOutput{Document: doc}, nil
}

// Status reports the request-independent configuration state plus the
// adapter's advisory health cell.
func (s *GenerateService) Status(context.Context) StatusOutput {
	h := s.llm.Health()
	return StatusOutput{
		Configured:  s.keyConfigured,
		Checked:     h.Checked,
		Healthy:     h.Healthy,
		LastChecked: h.LastChecked,
		Model:       s.model,
	}
}

func (s *GenerateService) generateStructure(ctx context.Context, topic string) (*domain.PresentationDocument, error) {
	raw, err := s.llm.Complete(ctx, structureMessages(topic), structureMaxTokens)
	if err != nil {
		return nil, classifyUpstream(err, "structure_completion")
	}
	doc, err := parseStructure(raw)
	if err != nil {
		return nil, newError(ErrorStructureParse, "structure_parse", err)
	}
	return doc, nil
}

func (s *GenerateService) generateEnhancement(ctx context.Context, doc *domain.PresentationDocument) (*domain.EnhancementResult, error) {
	messages, err := enhancementMessages(doc)
	if err != nil {
		return nil, err
	}
	raw, err := s.llm.Complete(ctx, messages, enhancementMaxTokens)
	if err != nil {
		return nil, err
	}
	return parseEnhancement(raw)
}

// mergeEnhancements applies enhancement entries in place. Entries whose
// slideIndex does not address an existing slide, negative included, are
// skipped without error.
func mergeEnhancements(doc *domain.PresentationDocument, res *domain.EnhancementResult) {
	for _, e := range res.EnhancedSlides {
		if e.SlideIndex < 0 || e.SlideIndex >= len(doc.Slides) {
			continue
		}
		doc.Slides[e.SlideIndex].EnhancedNotes = e.EnhancedNotes
		doc.Slides[e.SlideIndex].Transition = e.Transition
	}
	if len(res.KeyTakeaways) > 0 {
		doc.KeyTakeaways = res.KeyTakeaways
	}
}

func classifyUpstream(err error, reason string) *Error {
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.Kind {
		case llm.KindMissingKey:
			return newError(ErrorMissingCredential, reason, err)
		case llm.KindRateLimited:
			return newError(ErrorRateLimited, reason, err)
		}
		return newError(ErrorUpstream, reason, err)
	}
	return newError(ErrorInternal, reason, err)
}

func outcomeFor(err error) string {
	var ucErr *Error
	if errors.As(err, &ucErr) {
		return string(ucErr.Code)
	}
	return string(ErrorInternal)
}

func (s *GenerateService) record(ctx context.Context, topic string, slideCount int, enhanced bool, outcome string, started time.Time) {
	err := s.recorder.RecordGeneration(ctx, topic, slideCount, enhanced, outcome, time.Since(started))
	if err != nil {
		s.logger.Warn("generation audit write failed", "topic", topic, "err", err)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
