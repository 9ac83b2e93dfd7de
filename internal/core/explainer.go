// ABOUTME: Explainer asks the language model to justify retrieved movies
// ABOUTME: Supports recommendation and search framings; empty results get a fixed reply
package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/llm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"go.uber.org/zap"
)

// NoResultsMessage is returned instead of an explanation when nothing matched
const NoResultsMessage = "I couldn't find any movies matching your criteria. Can you try with different preferences or fewer restrictions?"

// Purpose selects how the explanation is framed
type Purpose string

const (
	PurposeRecommendation Purpose = "recommendation"
	PurposeSearch         Purpose = "search"
)

// ParsePurpose validates a purpose name; empty means recommendation
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(strings.ToLower(strings.TrimSpace(s))) {
	case "", PurposeRecommendation:
		return PurposeRecommendation, nil
	case PurposeSearch:
		return PurposeSearch, nil
	}
	return "", models.NewOpError("purpose", models.ErrInvalidInput, fmt.Errorf("unknown purpose %q", s))
}

var explainOptions = llm.ChatOptions{Temperature: 0.7, MaxTokens: 300}

const explainSystemPrompt = `You are a helpful movie recommendation assistant.
Provide personalized, thoughtful recommendations explaining why each movie matches the user's preferences.
Focus on content, themes, and mood rather than just genre matches.`

// Explainer turns retrieval results into a natural-language answer
type Explainer struct {
	chat   ChatModel
	logger *zap.Logger
}

// NewExplainer creates an explainer
func NewExplainer(chat ChatModel, logger *zap.Logger) *Explainer {
	return &Explainer{chat: chat, logger: logging.OrNop(logger).Named("explainer")}
}

// Explain calls the model once. Failures surface as generation errors.
func (e *Explainer) Explain(ctx context.Context, query string, results models.RetrievalResult, purpose Purpose) (string, error) {
	if results.Empty() {
		return NoResultsMessage, nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: explainSystemPrompt},
		{Role: llm.RoleUser, Content: BuildExplainPrompt(query, results, purpose)},
	}
	out, err := e.chat.Chat(ctx, messages, explainOptions)
	if err != nil {
		return "", typed("explain", models.ErrGeneration, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", models.NewOpError("explain", models.ErrGeneration, errors.New("model returned an empty explanation"))
	}

	e.logger.Debug("explained results", zap.Int("results", results.Len()), zap.String("purpose", string(purpose)))
	return out, nil
}

// BuildExplainPrompt renders the user prompt for an explanation
func BuildExplainPrompt(query string, results models.RetrievalResult, purpose Purpose) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on the user's request: %q\n\nI've found these potentially relevant movies:\n\n", query)
	for i, it := range results.Items {
		m := it.Movie
		fmt.Fprintf(&sb, "%d. %s (%s) - %s - %s\n", i+1, m.Title, yearLabel(m), ratingLabel(m), m.Type)
		fmt.Fprintf(&sb, "   Description: %s\n", m.Description)
		fmt.Fprintf(&sb, "   Similarity score: %.4f\n\n", it.Similarity)
	}

	if purpose == PurposeSearch {
		sb.WriteString("Please analyze these search results and help the user understand which movies best match their query and why.")
	} else {
		sb.WriteString("Please recommend 2-3 of these movies that best match the user's preferences. Explain why each recommendation fits what they're looking for.")
	}
	return sb.String()
}

func yearLabel(m models.MovieRecord) string {
	if !m.HasYear() {
		return "unknown year"
	}
	return strconv.Itoa(m.ReleaseYear)
}

func ratingLabel(m models.MovieRecord) string {
	if !m.HasRating() {
		return "unrated"
	}
	return m.Rating
}
