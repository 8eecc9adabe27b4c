package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/config"
	"github.com/placementalarm/placement-api/pkg/circuitbreaker"
)

func newTestClient(serverURL string) *client {
	return &client{
		cfg: config.GeminiConfig{
			Model:       "gemini-2.0-flash-001",
			Temperature: 0.1,
			TopP:        0.9,
		},
		baseURL:    serverURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "gemini-test",
			MaxFailures: 5,
			Timeout:     time.Minute,
		}),
	}
}

func modelResponse(text string) string {
	out, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(out)
}

func TestExtractProposal(t *testing.T) {
	var gotRequest generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		w.Write([]byte(modelResponse(`{"name": "Acme", "role": "SWE Intern", "type": "Intern", "driveType": "On-Campus"}`)))
	}))
	defer server.Close()

	proposal, err := newTestClient(server.URL).ExtractProposal(context.Background(), "Acme drive || Intern", "apply by friday")
	require.NoError(t, err)

	assert.Equal(t, "Acme", proposal.Name)
	assert.Equal(t, "SWE Intern", proposal.Role)
	assert.Equal(t, 0.1, gotRequest.GenerationConfig.Temperature)
	assert.Equal(t, 0.9, gotRequest.GenerationConfig.TopP)
	require.Len(t, gotRequest.Contents, 1)
	assert.Contains(t, gotRequest.Contents[0].Parts[0].Text, "Acme drive || Intern")
}

func TestExtractProposalServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).ExtractProposal(context.Background(), "subject", "body")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRelevant)
}

func TestParseProposal(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{
			name: "plain object",
			text: `{"name": "Acme", "role": "SWE"}`,
			want: "Acme",
		},
		{
			name: "wrapped in code fences",
			text: "```json\n{\"name\": \"Acme\"}\n```",
			want: "Acme",
		},
		{
			name: "prose around the object",
			text: "Here is the extraction: {\"name\": \"Acme\"} hope that helps",
			want: "Acme",
		},
		{
			name:    "rejection sentinel",
			text:    `{"rejected": true}`,
			wantErr: ErrNotRelevant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposal, err := parseProposal(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, proposal.Name)
		})
	}
}

func TestParseProposalNoJSON(t *testing.T) {
	_, err := parseProposal("the model rambled and produced nothing structured")
	assert.Error(t, err)
}

func TestParseProposalMissingName(t *testing.T) {
	_, err := parseProposal(`{"role": "SWE"}`)
	assert.Error(t, err)
}
