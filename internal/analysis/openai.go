package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/domain"
)

const systemPrompt = `You are an expert AI assistant that processes technical support tickets.
Your job is to:
1. Summarize the issue.
2. Estimate its priority.
3. Provide helpful notes and resource links for human moderators.
4. List relevant technical skills required.

Respond with ONLY a JSON object, no markdown, no comments, in exactly this shape:
{"summary": "...", "priority": "low|medium|high", "helpfulNotes": "...", "relatedSkills": ["..."]}`

const maxResponseBytes = 1 << 20

// OpenAIAnalyzer asks an OpenAI-compatible chat completions endpoint to triage tickets.
type OpenAIAnalyzer struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIAnalyzer builds an analyzer. endpoint is the API base, for example
// https://api.openai.com; the chat completions path is appended.
func NewOpenAIAnalyzer(endpoint, apiKey, model string, timeout time.Duration, logger *zap.Logger) *OpenAIAnalyzer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OpenAIAnalyzer{
		endpoint:   strings.TrimRight(endpoint, "/") + "/v1/chat/completions",
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze implements Analyzer.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, ticket *domain.Ticket) (Outcome, error) {
	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Analyze the following support ticket.\n\nTitle: %s\nDescription: %s", ticket.Title, ticket.Description)},
		},
	})
	if err != nil {
		return None(), fmt.Errorf("marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return None(), fmt.Errorf("create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return None(), ctxErr
		}
		a.logger.Warn("analysis request failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return None(), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return None(), ctxErr
		}
		a.logger.Warn("analysis response unreadable", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return None(), nil
	}
	if resp.StatusCode >= 300 {
		a.logger.Warn("analysis endpoint returned error",
			zap.String("ticket_id", ticket.ID),
			zap.Int("status", resp.StatusCode))
		return None(), nil
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil || len(chat.Choices) == 0 {
		a.logger.Warn("analysis response malformed", zap.String("ticket_id", ticket.ID))
		return None(), nil
	}

	result, err := ParseResult(chat.Choices[0].Message.Content)
	if err != nil {
		a.logger.Warn("analysis reply not parseable", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return None(), nil
	}
	return Some(result), nil
}

// ParseResult decodes a model reply, tolerating a surrounding markdown code fence.
func ParseResult(content string) (Result, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return Result{}, errors.New("empty reply")
	}

	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return Result{}, fmt.Errorf("decode reply: %w", err)
	}
	result.RelatedSkills = cleanSkills(result.RelatedSkills)
	return result, nil
}

func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
