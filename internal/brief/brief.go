// Package brief turns a dataset's severity summary into a short written
// inspection brief for the review handover. Generation is optional: without
// an API key the rest of the service runs unaffected.
package brief

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/railscan/polemap/internal/severity"
)

// WorstPole is one of the most misplaced poles in the dataset.
type WorstPole struct {
	PoleID   string
	Value    float64
	Category severity.Category
}

// Summary is the classified shape of one loaded dataset.
type Summary struct {
	Source   string
	RowCount int
	Counts   map[severity.Category]int
	Worst    []WorstPole
}

// Generator produces inspection briefs using OpenAI's API.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a brief generator. It reads the OPENAI_API_KEY
// environment variable for authentication.
func NewGenerator() (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Generator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Generate writes a one-paragraph brief for the summary.
func (g *Generator) Generate(ctx context.Context, s Summary) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You write terse inspection handover notes for rail infrastructure surveyors. One paragraph, no headings, no speculation beyond the numbers given."),
			openai.UserMessage(BuildPrompt(s)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders the summary as the model prompt. Categories appear in
// legend order so the prompt is stable for the same dataset.
func BuildPrompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey dataset %q, %d poles measured.\n", s.Source, s.RowCount)
	b.WriteString("Misplacement severity counts:\n")
	for _, c := range severity.Categories() {
		if n := s.Counts[c]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", c, n)
		}
	}
	if len(s.Worst) > 0 {
		worst := append([]WorstPole(nil), s.Worst...)
		sort.Slice(worst, func(i, j int) bool {
			return abs(worst[i].Value) > abs(worst[j].Value)
		})
		b.WriteString("Largest misplacements:\n")
		for _, w := range worst {
			fmt.Fprintf(&b, "- pole %s: %.3f m (%s)\n", w.PoleID, w.Value, w.Category)
		}
	}
	b.WriteString("Summarize the state of this survey section and what the field crew should look at first.")
	return b.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
