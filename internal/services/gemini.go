package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"redisquery-backend/internal/models"
)

type GeminiOptions struct {
	APIKey         string
	Model          string
	Temperature    float32
	RequestsPerMin int
	ConcurrentReqs int
	Timeout        time.Duration
}

// sendFunc performs the single outbound chat call and returns the raw text.
type sendFunc func(ctx context.Context, history []*genai.Content, turn string) (string, error)

type GeminiService struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	limiter    *rate.Limiter
	rateChan   chan struct{} // Token bucket
	timeout    time.Duration
	missingKey bool
	send       sendFunc
}

func NewGeminiService(opts GeminiOptions) (*GeminiService, error) {
	s := newGeminiService(opts)

	if opts.APIKey == "" {
		s.missingKey = true
		return s, nil
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	model.SetTopP(0.95)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemPrompt)}}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = ResponseSchema()

	s.client = client
	s.model = model
	s.send = s.sendChat
	return s, nil
}

func newGeminiService(opts GeminiOptions) *GeminiService {
	concurrent := opts.ConcurrentReqs
	if concurrent <= 0 {
		concurrent = 1
	}
	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMin)), concurrent)
	}

	return &GeminiService{
		limiter:  limiter,
		rateChan: rateChan,
		timeout:  opts.Timeout,
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Configured reports whether an API key was supplied.
func (s *GeminiService) Configured() bool {
	return !s.missingKey
}

// acquireRate blocks until both the per-minute limiter and a concurrency slot allow a call
func (s *GeminiService) acquireRate(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for Gemini rate limit: %w", err)
	}
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends the prior history plus one new user turn and returns the
// validated result. Every failure is a *GenerationError.
func (s *GeminiService) Generate(ctx context.Context, schemaCtx models.SchemaContext, history []models.Message, userInput string) (*models.GenerationResult, error) {
	if s.missingKey {
		return nil, s.fail(KindCredentials, ErrMissingAPIKey)
	}

	if err := s.acquireRate(ctx); err != nil {
		return nil, s.fail(KindTransport, err)
	}
	defer s.releaseRate()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	turn := BuildUserTurn(schemaCtx, history, userInput)

	raw, err := s.send(ctx, toContents(history), turn)
	if err != nil {
		return nil, s.fail(classifySendError(err), err)
	}

	result, err := ParseGenerationResult(raw)
	if err != nil {
		return nil, s.fail(KindMalformed, err)
	}

	return result, nil
}

func (s *GeminiService) fail(kind GenerationErrorKind, err error) *GenerationError {
	genErr := &GenerationError{Kind: kind, Err: err}
	log.Printf("Error generating Redis response: %s", genErr.Detail())
	return genErr
}

func (s *GeminiService) sendChat(ctx context.Context, history []*genai.Content, turn string) (string, error) {
	cs := s.model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(turn))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	return extractText(resp), nil
}

func classifySendError(err error) GenerationErrorKind {
	if errors.Is(err, ErrMissingAPIKey) {
		return KindCredentials
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return KindCredentials
		}
	}
	return KindTransport
}

// ParseGenerationResult treats the model output as untrusted: it must be a
// JSON object carrying both fields. Empty strings are passed through.
func ParseGenerationResult(raw string) (*models.GenerationResult, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, errors.New("model returned empty text")
	}

	var payload struct {
		Command     *string `json:"command"`
		Explanation *string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("model output is not a JSON object: %w", err)
	}

	var missing []string
	if payload.Command == nil {
		missing = append(missing, "command")
	}
	if payload.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("model output is missing %s", strings.Join(missing, ", "))
	}
	return &models.GenerationResult{
		Command:     *payload.Command,
		Explanation: *payload.Explanation,
	}, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
