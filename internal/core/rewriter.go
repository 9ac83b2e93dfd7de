// ABOUTME: Query rewriter that makes follow-up questions self-contained
// ABOUTME: Uses recent conversation turns as context and falls back to the raw query on failure
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/BASF-LSU-Collaborations/ragui/internal/llm"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"go.uber.org/zap"
)

// DefaultHistoryWindow is how many recent turns the rewriter sends
const DefaultHistoryWindow = 6

var rewriteOptions = llm.ChatOptions{Temperature: 0.3, MaxTokens: 50}

const rewriteSystemPrompt = "You are a helpful assistant that ensures questions are rephrased clearly with full context."

// ChatModel generates a completion for a list of messages
type ChatModel interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// Rewriter rephrases a new query so it stands on its own
type Rewriter struct {
	chat   ChatModel
	window int
	logger *zap.Logger
}

// NewRewriter creates a rewriter that considers the last window turns
func NewRewriter(chat ChatModel, window int, logger *zap.Logger) *Rewriter {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &Rewriter{chat: chat, window: window, logger: logging.OrNop(logger).Named("rewriter")}
}

// Rewrite returns a self-contained version of query. It never fails: with no
// history, or when the model call fails, query is returned unchanged.
// history is only read.
func (r *Rewriter) Rewrite(ctx context.Context, history *models.ConversationState, query string) string {
	turns := history.Last(r.window)
	if len(turns) == 0 {
		return query
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: rewriteSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Conversation history:\n%s\n\nRephrase this question so that it fully references any missing subjects: '%s'",
			renderTurns(turns), query)},
	}

	out, err := r.chat.Chat(ctx, messages, rewriteOptions)
	if err != nil {
		r.logger.Warn("rewrite failed, using original query", zap.Error(err))
		return query
	}
	out = cleanRewrite(out)
	if out == "" {
		r.logger.Warn("rewrite returned nothing, using original query")
		return query
	}

	r.logger.Debug("rewrote query", zap.String("query", query), zap.String("rewritten", out))
	return out
}

func renderTurns(turns []models.Turn) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// cleanRewrite strips whitespace and the quotes models like to echo back
func cleanRewrite(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, `'`} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
