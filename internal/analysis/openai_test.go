package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/domain"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Result
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"priority":"high","helpfulNotes":"check logs","relatedSkills":["docker"," ",""]}`,
			want:    Result{Priority: "high", HelpfulNotes: "check logs", RelatedSkills: []string{"docker"}},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"priority\":\"low\",\"helpfulNotes\":\"n\",\"relatedSkills\":[]}\n```",
			want:    Result{Priority: "low", HelpfulNotes: "n", RelatedSkills: []string{}},
		},
		{name: "empty", content: "  ", wantErr: true},
		{name: "prose", content: "I cannot help with that", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req chatRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "test-model", req.Model)
			assert.Contains(t, req.Messages[1].Content, "Docker won't start")
		}

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIAnalyzerSome(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"priority":"high","helpfulNotes":"restart daemon","relatedSkills":["docker","kubernetes"]}`)
	a := NewOpenAIAnalyzer(srv.URL+"/", "key", "test-model", time.Second, zap.NewNop())

	out, err := a.Analyze(context.Background(), &domain.Ticket{ID: "t1", Title: "Docker won't start"})
	require.NoError(t, err)

	res, ok := out.Get()
	require.True(t, ok)
	assert.Equal(t, "high", res.Priority)
	assert.Equal(t, []string{"docker", "kubernetes"}, res.RelatedSkills)
}

func TestOpenAIAnalyzerNoneOnServerError(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	a := NewOpenAIAnalyzer(srv.URL, "key", "test-model", time.Second, zap.NewNop())

	out, err := a.Analyze(context.Background(), &domain.Ticket{ID: "t1", Title: "Docker won't start"})
	require.NoError(t, err)
	_, ok := out.Get()
	assert.False(t, ok)
}

func TestOpenAIAnalyzerNoneOnGarbage(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "sorry, no json today")
	a := NewOpenAIAnalyzer(srv.URL, "key", "test-model", time.Second, zap.NewNop())

	out, err := a.Analyze(context.Background(), &domain.Ticket{ID: "t1", Title: "Docker won't start"})
	require.NoError(t, err)
	_, ok := out.Get()
	assert.False(t, ok)
}

func TestOpenAIAnalyzerReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	a := NewOpenAIAnalyzer(srv.URL, "", "m", 5*time.Second, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := a.Analyze(ctx, &domain.Ticket{ID: "t1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNopAnalyzer(t *testing.T) {
	out, err := NopAnalyzer{}.Analyze(context.Background(), &domain.Ticket{})
	require.NoError(t, err)
	_, ok := out.Get()
	assert.False(t, ok)
}
