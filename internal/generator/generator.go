// Package generator produces grounded answers via a hosted chat model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"worlds-rag/internal/embedding"
	"worlds-rag/internal/store"
)

// ErrGeneration indicates the hosted generation API call failed. The error
// is surfaced to the caller and never retried.
var ErrGeneration = errors.New("answer generation failed")

const promptTemplate = `You are an expert on the book %q by %s.
Use the following pieces of context from the book to answer the question at the end.
If you don't know the answer based on the context, just say that you don't know, don't try to make up an answer.
Always answer in English and provide detailed, accurate responses based on the book's content.

Context from the book:
%s

Question: %s

Detailed Answer:`

// Generator assembles a context-grounded prompt and calls the chat
// completions API with a bounded temperature.
type Generator struct {
	client      *embedding.Client
	model       string
	temperature float64
	bookTitle   string
	bookAuthor  string
}

// NewGenerator creates a Generator for the given model and book identity.
func NewGenerator(client *embedding.Client, model string, temperature float64, bookTitle, bookAuthor string) *Generator {
	return &Generator{
		client:      client,
		model:       model,
		temperature: temperature,
		bookTitle:   bookTitle,
		bookAuthor:  bookAuthor,
	}
}

// Generate answers the question from the retrieved segments. Segments are
// concatenated in retrieval order into a single context block; the model is
// instructed to answer only from that context.
func (g *Generator) Generate(ctx context.Context, question string, segments []store.ScoredSegment) (string, error) {
	prompt := g.buildPrompt(question, segments)

	resp, err := g.client.Client().Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *Generator) buildPrompt(question string, segments []store.ScoredSegment) string {
	return fmt.Sprintf(promptTemplate, g.bookTitle, g.bookAuthor, contextBlock(segments), question)
}

// contextBlock joins segment texts in retrieval order, separated by blank
// lines, mirroring how the segments were cut from the source.
func contextBlock(segments []store.ScoredSegment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.Content
	}
	return strings.Join(parts, "\n\n")
}
