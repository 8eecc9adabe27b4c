package gemini

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

	"github.com/placementalarm/placement-api/config"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/pkg/circuitbreaker"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// ErrNotRelevant means the model decided the message is not a placement
// announcement. Callers mark the message read and move on.
var ErrNotRelevant = errors.New("message is not a placement announcement")

// Extractor turns a raw announcement email into a structured proposal.
type Extractor interface {
	ExtractProposal(ctx context.Context, subject, body string) (*model.CompanyProposal, error)
}

type client struct {
	cfg        config.GeminiConfig
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewClient(cfg config.GeminiConfig) Extractor {
	return &client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "gemini",
			MaxFailures: 5,
			Timeout:     time.Minute,
		}),
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

const promptTemplate = `You are given a college placement cell email. Extract the company announcement as JSON with exactly these keys:
{"name": "", "role": "", "package": "", "deadline": "", "type": "", "driveType": "", "link": "", "eligible-branch": "", "eligibility-criteria": ""}

Rules:
- "deadline" must be ISO 8601 if a deadline is present, otherwise empty.
- "type" is one of: Intern, Intern + FTE, Intern + PPO, FTE, Hackathon.
- "driveType" is On-Campus or Off-Campus.
- If the email is not a company hiring announcement, respond with exactly {"rejected": true}.
- Respond with the JSON object only, no prose.

Subject: %s

Body:
%s`

func (c *client) ExtractProposal(ctx context.Context, subject, body string) (*model.CompanyProposal, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, subject, body)}}}},
		GenerationConfig: generationConfig{
			Temperature: c.cfg.Temperature,
			TopP:        c.cfg.TopP,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.cfg.Model, c.cfg.APIKey)

	var respBody []byte
	err = c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call model: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("model returned status %d: %s", resp.StatusCode, respBody)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	return parseProposal(genResp.Candidates[0].Content.Parts[0].Text)
}

// parseProposal digs the JSON object out of the model's text, which may
// be wrapped in markdown code fences.
func parseProposal(text string) (*model.CompanyProposal, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	raw := text[start : end+1]

	var rejection struct {
		Rejected bool `json:"rejected"`
	}
	if err := json.Unmarshal([]byte(raw), &rejection); err == nil && rejection.Rejected {
		return nil, ErrNotRelevant
	}

	var proposal model.CompanyProposal
	if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
		return nil, fmt.Errorf("failed to parse proposal: %w", err)
	}
	if proposal.Name == "" {
		return nil, fmt.Errorf("proposal missing company name")
	}
	return &proposal, nil
}
