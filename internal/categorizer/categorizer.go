// Package categorizer asks a Gemini model to propose categories for
// uncategorized transactions. Proposals are checked against the category
// tree; anything that does not validate is dropped.
package categorizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/categories"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash"
	// DefaultBatchSize is the number of transactions sent per request.
	DefaultBatchSize = 100

	maxConcurrentBatches = 4
)

// Generator sends a prompt to a model and returns its text answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini is a Generator backed by the genai client.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. Credentials come from the
// environment (GOOGLE_API_KEY, or the Vertex AI variables).
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}
	return text, nil
}

// Categorizer turns model answers into validated suggestions.
type Categorizer struct {
	gen       Generator
	batchSize int
	log       zerolog.Logger
}

// New creates a Categorizer on top of gen.
func New(gen Generator, batchSize int, log zerolog.Logger) *Categorizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Categorizer{gen: gen, batchSize: batchSize, log: log}
}

// Suggest proposes a category for each transaction in txns. Transactions
// are sent in batches; a failing batch fails the whole call. The result
// holds at most one suggestion per transaction, in input order, and only
// assignments that exist in tree.
func (c *Categorizer) Suggest(ctx context.Context, tree []domain.Category, txns []domain.Transaction) ([]domain.Suggestion, error) {
	if len(txns) == 0 || len(tree) == 0 {
		return []domain.Suggestion{}, nil
	}

	batches := chunk(txns, c.batchSize)
	answers := make([][]domain.Suggestion, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for i, batch := range batches {
		g.Go(func() error {
			prompt, err := buildPrompt(tree, batch)
			if err != nil {
				return err
			}
			raw, err := c.gen.Generate(gctx, prompt)
			if err != nil {
				return fmt.Errorf("Suggest: batch %d: %w", i, err)
			}
			parsed, err := parseSuggestions(raw)
			if err != nil {
				return fmt.Errorf("Suggest: batch %d: %w", i, err)
			}
			answers[i] = parsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Suggestion
	for _, a := range answers {
		all = append(all, a...)
	}
	return c.filter(tree, txns, all), nil
}

// filter keeps the first valid suggestion of every known transaction.
func (c *Categorizer) filter(tree []domain.Category, txns []domain.Transaction, suggestions []domain.Suggestion) []domain.Suggestion {
	v := categories.NewValidator(tree)

	byID := make(map[domain.ID]domain.Suggestion, len(suggestions))
	for _, s := range suggestions {
		if _, seen := byID[s.ID]; seen {
			continue
		}
		if err := v.ValidateAssignment(s.CategoryID, s.SubcategoryID); err != nil {
			c.log.Warn().Err(err).Str("txn_id", s.ID.String()).Msg("Dropping invalid suggestion")
			continue
		}
		byID[s.ID] = s
	}

	out := make([]domain.Suggestion, 0, len(byID))
	for _, t := range txns {
		if s, ok := byID[t.ID]; ok {
			out = append(out, s)
		}
	}
	if dropped := len(suggestions) - len(out); dropped > 0 {
		c.log.Info().Int("suggested", len(suggestions)).Int("kept", len(out)).Msg("Filtered suggestions")
	}
	return out
}

func parseSuggestions(raw string) ([]domain.Suggestion, error) {
	clean := cleanModelJSON(raw)
	var out []domain.Suggestion
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("parseSuggestions: unmarshal JSON: %w", err)
	}
	return out, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	return append(out, items)
}
