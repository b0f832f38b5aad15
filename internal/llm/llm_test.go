package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestdev/CREST/internal/optimize"
)

// completionServer returns a test server that responds to every chat
// completion call with the text produced by reply.
func completionServer(t *testing.T, reply func(req chatRequest) string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: reply(req)}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "openrouter/test-model",
	})
}

func TestClientComplete(t *testing.T) {
	srv := completionServer(t, func(req chatRequest) string {
		assert.Equal(t, "openrouter/test-model", req.Model)
		return "hello back"
	})
	defer srv.Close()

	got, err := testClient(srv.URL).Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello back", got)
}

func TestClientCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantIn  string
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream down", http.StatusBadGateway)
			},
			wantIn: "status 502",
		},
		{
			name: "api error payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"error":{"message":"quota exceeded"}}`)
			},
			wantIn: "quota exceeded",
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"choices":[]}`)
			},
			wantIn: "no choices",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := testClient(srv.URL).Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantIn)
		})
	}
}

func TestGeneratorFirstCall(t *testing.T) {
	srv := completionServer(t, func(req chatRequest) string {
		assert.Contains(t, req.Messages[1].Content, "Original text:\nsome source")
		assert.Contains(t, req.Messages[1].Content, "first draft")
		assert.NotContains(t, req.Messages[1].Content, "Current best version")
		return "  a fresh take on the source  "
	})
	defer srv.Close()

	gen := NewGenerator(testClient(srv.URL), 280)
	candidate, err := gen.Generate(context.Background(), "some source", optimize.Candidate("some source"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a fresh take on the source", candidate.String())
}

func TestGeneratorRevisionCall(t *testing.T) {
	feedback, err := optimize.NewEvaluationResult([]optimize.DimensionScore{
		{Name: "clarity", Rationale: "a bit dense", Value: 4},
		{Name: "impact", Rationale: "strong hook", Value: 8},
	})
	require.NoError(t, err)

	srv := completionServer(t, func(req chatRequest) string {
		assert.Contains(t, req.Messages[1].Content, "Current best version:\nthe best so far")
		assert.Contains(t, req.Messages[1].Content, "clarity (Score: 4/9): a bit dense")
		assert.Contains(t, req.Messages[1].Content, "Focus on improving these areas: clarity (current score: 4/9)")
		assert.NotContains(t, req.Messages[1].Content, "impact (current score")
		return "a clearer take"
	})
	defer srv.Close()

	gen := NewGenerator(testClient(srv.URL), 280)
	candidate, err := gen.Generate(context.Background(), "src", optimize.Candidate("the best so far"), feedback)
	require.NoError(t, err)
	assert.Equal(t, "a clearer take", candidate.String())
}

func TestGeneratorTruncatesOversizedCandidate(t *testing.T) {
	srv := completionServer(t, func(req chatRequest) string {
		return strings.Repeat("x", 500)
	})
	defer srv.Close()

	gen := NewGenerator(testClient(srv.URL), 280)
	candidate, err := gen.Generate(context.Background(), "src", "src", nil)
	require.NoError(t, err)
	assert.Equal(t, 280, candidate.Len())
	assert.True(t, strings.HasSuffix(candidate.String(), optimize.TruncationMarker))
}

func TestGeneratorErrorClassification(t *testing.T) {
	t.Run("empty output", func(t *testing.T) {
		srv := completionServer(t, func(req chatRequest) string { return "   " })
		defer srv.Close()

		_, err := NewGenerator(testClient(srv.URL), 280).Generate(context.Background(), "src", "src", nil)
		require.Error(t, err)
		assert.True(t, optimize.IsKind(err, optimize.KindGeneration))
	})

	t.Run("backend unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewGenerator(testClient(srv.URL), 280).Generate(context.Background(), "src", "src", nil)
		require.Error(t, err)
		assert.True(t, optimize.IsKind(err, optimize.KindGeneration))
	})
}

func TestEvaluatorParsesJudgment(t *testing.T) {
	// The model answers out of request order and wrapped in a code fence;
	// both are tolerated.
	srv := completionServer(t, func(req chatRequest) string {
		assert.Contains(t, req.Messages[1].Content, "Candidate to evaluate:\nthe candidate")
		assert.Contains(t, req.Messages[1].Content, "- clarity")
		assert.Contains(t, req.Messages[1].Content, "- impact")
		return "```json\n" + `{"scores":[
			{"name":"impact","rationale":"lands well","value":8},
			{"name":"clarity","rationale":"easy read","value":6}
		]}` + "\n```"
	})
	defer srv.Close()

	eval := NewEvaluator(testClient(srv.URL))
	result, err := eval.Evaluate(context.Background(), "src", "best", "the candidate", []string{"clarity", "impact"})
	require.NoError(t, err)

	require.Len(t, result.Scores, 2)
	assert.Equal(t, "clarity", result.Scores[0].Name)
	assert.Equal(t, 6, result.Scores[0].Value)
	assert.Equal(t, "impact", result.Scores[1].Name)
	assert.Equal(t, 8, result.Scores[1].Value)
	assert.Equal(t, 14, result.Total())
}

func TestEvaluatorRejectsMalformedJudgment(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "the candidate is great, 8/9"},
		{name: "missing dimension", reply: `{"scores":[{"name":"clarity","value":6}]}`},
		{name: "unknown extra dimension", reply: `{"scores":[{"name":"clarity","value":6},{"name":"tone","value":5},{"name":"impact","value":4}]}`},
		{name: "duplicate dimension", reply: `{"scores":[{"name":"clarity","value":6},{"name":"clarity","value":7}]}`},
		{name: "value out of range", reply: `{"scores":[{"name":"clarity","value":0},{"name":"impact","value":5}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := completionServer(t, func(chatRequest) string { return tt.reply })
			defer srv.Close()

			eval := NewEvaluator(testClient(srv.URL))
			_, err := eval.Evaluate(context.Background(), "src", "best", "cand", []string{"clarity", "impact"})
			require.Error(t, err)
			assert.True(t, optimize.IsKind(err, optimize.KindEvaluation),
				"malformed judgments are fatal evaluation errors, got %v", err)
		})
	}
}

func TestFormatFeedback(t *testing.T) {
	result, err := optimize.NewEvaluationResult([]optimize.DimensionScore{
		{Name: "clarity", Rationale: "easy read", Value: 6},
		{Name: "impact", Rationale: "lands well", Value: 8},
	})
	require.NoError(t, err)

	got := FormatFeedback(result)
	assert.Equal(t, "clarity (Score: 6/9): easy read\nimpact (Score: 8/9): lands well", got)
}
