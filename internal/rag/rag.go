// ABOUTME: Query orchestrator: intent routing, retrieval, grounded generation, and citation assembly
// ABOUTME: Every failure after input validation degrades to a valid answer with confidence in [0,1]
package rag

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/harper/bookbuddy/internal/llm"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/search"
)

// ErrEmptyQuery is returned when the query has no text
var ErrEmptyQuery = errors.New("query is required")

const (
	DefaultK               = 5
	DefaultMinSimilarity   = 0.3
	DefaultHistoryMessages = 4

	// FallbackConfidence is used when the model's structured output is unusable
	FallbackConfidence = 0.7
	// ChatConfidence is reported for conversational replies
	ChatConfidence = 1.0
)

const (
	NoResultsAnswer = "I couldn't find any relevant information in the uploaded books to answer your question. Could you try rephrasing or asking about a different topic?"
	ApologyAnswer   = "I apologize, but I'm currently experiencing high demand. Please try again in a few moments. If you have uploaded a book, I can still search through it, but response generation is temporarily limited."
)

// Searcher retrieves ranked passages
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]models.SearchResult, error)
}

// Options scope a single answer
type Options struct {
	DocumentID    string
	CallerID      string
	K             int
	Persona       Persona
	MemoryContext string
}

// Orchestrator answers questions over the library
type Orchestrator struct {
	searcher        Searcher
	generator       llm.Generator
	minSimilarity   float64
	historyMessages int
	log             logger.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithMinSimilarity sets the retrieval threshold for answers
func WithMinSimilarity(v float64) Option {
	return func(o *Orchestrator) {
		if v >= 0 && v <= 1 {
			o.minSimilarity = v
		}
	}
}

// WithHistoryMessages sets how many trailing messages AnswerWithHistory uses
func WithHistoryMessages(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyMessages = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an orchestrator
func New(searcher Searcher, generator llm.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:        searcher,
		generator:       generator,
		minSimilarity:   DefaultMinSimilarity,
		historyMessages: DefaultHistoryMessages,
		log:             logger.Component("rag"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Classify routes a query to CHAT or SEARCH. Anything other than a clear CHAT,
// including a failed call, is SEARCH.
func (o *Orchestrator) Classify(ctx context.Context, query string) models.Intent {
	out, err := o.generator.Generate(ctx, classifyPrompt(query), "",
		llm.WithTemperature(0.1), llm.WithMaxTokens(10))
	if err != nil {
		o.log.Warn("intent classification failed, defaulting to search", "error", err)
		return models.IntentSearch
	}
	return parseIntent(out)
}

func parseIntent(out string) models.Intent {
	text := strings.ToUpper(strings.TrimSpace(out))
	if strings.Contains(text, string(models.IntentChat)) && !strings.Contains(text, string(models.IntentSearch)) {
		return models.IntentChat
	}
	return models.IntentSearch
}

// Answer classifies, retrieves, and generates a cited answer. The only error is ErrEmptyQuery.
func (o *Orchestrator) Answer(ctx context.Context, query string, opts Options) (*models.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Persona == "" {
		opts.Persona = PersonaFriend
	}

	log := o.log.With("persona", opts.Persona, "k", opts.K)
	if opts.DocumentID != "" {
		log = log.With("document_id", opts.DocumentID)
	}

	intent := o.Classify(ctx, query)
	log.Debug("classified query", "intent", intent)

	var answer *models.Answer
	if intent == models.IntentChat {
		answer = o.chat(ctx, query, opts, log)
	} else {
		answer = o.ground(ctx, query, opts, log)
	}
	answer.Confidence = clamp(answer.Confidence)
	return answer, nil
}

// AnswerWithHistory answers with the trailing conversation appended to the memory context.
// history must not include the message being answered.
func (o *Orchestrator) AnswerWithHistory(ctx context.Context, query string, history []models.Message, opts Options) (*models.Answer, error) {
	if recent := HistoryContext(history, o.historyMessages); recent != "" {
		conversation := "Recent conversation:\n" + recent
		if opts.MemoryContext != "" {
			opts.MemoryContext += "\n\n" + conversation
		} else {
			opts.MemoryContext = conversation
		}
	}
	return o.Answer(ctx, query, opts)
}

func (o *Orchestrator) chat(ctx context.Context, query string, opts Options, log logger.Logger) *models.Answer {
	reply, err := o.generator.Generate(ctx, query, chatPrompt(opts.Persona, opts.MemoryContext))
	if err != nil {
		log.Error("chat reply failed", "error", err)
		return &models.Answer{Text: ApologyAnswer, Citations: []models.Citation{}, Confidence: 0, Intent: models.IntentChat}
	}
	return &models.Answer{
		Text:       strings.TrimSpace(reply),
		Citations:  []models.Citation{},
		Confidence: ChatConfidence,
		Intent:     models.IntentChat,
	}
}

func (o *Orchestrator) ground(ctx context.Context, query string, opts Options, log logger.Logger) *models.Answer {
	results, err := o.searcher.Search(ctx, query, search.Options{
		DocumentID:    opts.DocumentID,
		Limit:         opts.K,
		MinSimilarity: search.Threshold(o.minSimilarity),
	})
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return &models.Answer{Text: ApologyAnswer, Citations: []models.Citation{}, Confidence: 0, Intent: models.IntentSearch}
	}
	if len(results) == 0 {
		log.Info("no passages above threshold")
		return &models.Answer{Text: NoResultsAnswer, Citations: []models.Citation{}, Confidence: 0, Intent: models.IntentSearch}
	}
	log.Debug("retrieved passages", "count", len(results))

	passages, citations := BuildContext(results)
	system := SystemPrompt(opts.Persona, opts.MemoryContext)

	raw, err := o.generator.GenerateStructured(ctx, structuredPrompt(query, passages, citations), system)
	if err != nil {
		log.Error("answer generation failed", "error", err)
		return &models.Answer{Text: ApologyAnswer, Citations: citations, Confidence: 0, Intent: models.IntentSearch}
	}

	answer := interpret(raw, citations)
	answer.Intent = models.IntentSearch
	log.Info("generated answer", "confidence", answer.Confidence, "citations", len(answer.Citations))
	return answer
}

// interpret maps a structured response onto citations, or falls back to the raw text
func interpret(raw string, citations []models.Citation) *models.Answer {
	parsed, ok := llm.ParseStructured(raw)
	if !ok {
		return &models.Answer{Text: strings.TrimSpace(raw), Citations: citations, Confidence: FallbackConfidence}
	}

	answer := &models.Answer{Text: parsed.Answer, Confidence: FallbackConfidence, Citations: []models.Citation{}}
	if strings.TrimSpace(answer.Text) == "" {
		answer.Text = strings.TrimSpace(raw)
	}
	if parsed.HasConfidence {
		answer.Confidence = parsed.Confidence
	}

	seen := make(map[int]bool)
	for _, idx := range parsed.UsedCitations {
		if idx < 1 || idx > len(citations) || seen[idx] {
			continue
		}
		seen[idx] = true
		answer.Citations = append(answer.Citations, citations[idx-1])
	}
	return answer
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
