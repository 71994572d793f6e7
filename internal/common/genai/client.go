// Package genai produces short per-movie reasoning and snack pairings for a
// final recommendation list.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"movienight-workers/internal/common/config"
	apperrors "movienight-workers/internal/common/errors"
	httpclient "movienight-workers/internal/common/http"
	"movienight-workers/internal/models"
)

// Explanation is the generated text for one movie.
type Explanation struct {
	Reasoning string `json:"reasoning"`
	Pairing   string `json:"pairing"`
}

// Client calls the generation endpoint.
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
}

func NewClient(cfg config.GenAIConfig) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Options{
			Name:    "genai",
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		}),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Format      string  `json:"format"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Explain returns an explanation per movie ID. Movies the model skipped are
// absent from the map.
func (c *Client) Explain(ctx context.Context, moods []models.Mood, picks []models.ScoredCandidate) (map[int64]Explanation, error) {
	if len(picks) == 0 {
		return map[int64]Explanation{}, nil
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp generateResponse
	err := c.http.PostJSON(ctx, c.baseURL+"/api/ai/generate", headers, generateRequest{
		Prompt:      buildPrompt(moods, picks),
		MaxTokens:   150 * len(picks),
		Temperature: 0.7,
		Format:      "json",
	}, &resp)
	if err != nil {
		return nil, apperrors.NewReasoningFailedError(err)
	}

	var items []struct {
		MovieID   int64  `json:"movieId"`
		Reasoning string `json:"reasoning"`
		Pairing   string `json:"pairing"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &items); err != nil {
		return nil, apperrors.NewReasoningFailedError(fmt.Errorf("decode generated text: %w", err))
	}

	out := make(map[int64]Explanation, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Reasoning) == "" {
			continue
		}
		out[it.MovieID] = Explanation{Reasoning: it.Reasoning, Pairing: it.Pairing}
	}
	return out, nil
}

func buildPrompt(moods []models.Mood, picks []models.ScoredCandidate) string {
	var parts []string

	parts = append(parts, "You are a movie night host. Explain in one or two sentences why each movie suits this group, and suggest a snack pairing.")
	if len(moods) > 0 {
		names := make([]string, len(moods))
		for i, m := range moods {
			names[i] = string(m)
		}
		parts = append(parts, fmt.Sprintf("\nRequested moods: %s", strings.Join(names, ", ")))
	}

	parts = append(parts, "\nMovies:")
	for _, p := range picks {
		top := topSignals(p.Breakdown, 3)
		parts = append(parts, fmt.Sprintf("- id=%d %q (%d) score=%.0f signals: %s",
			p.Candidate.ID, p.Candidate.Title, p.Candidate.ReleaseYear(), p.Score(), strings.Join(top, "; ")))
	}

	parts = append(parts, "\nRespond with a JSON array of objects with keys movieId, reasoning, pairing.")
	return strings.Join(parts, "\n")
}

// topSignals returns the rationales of the largest positive contributions.
func topSignals(b models.ScoreBreakdown, n int) []string {
	var positive []models.SignalContribution
	for _, c := range b.Contributions {
		if c.Signal != "base" && c.Delta > 0 {
			positive = append(positive, c)
		}
	}
	sort.SliceStable(positive, func(i, j int) bool { return positive[i].Delta > positive[j].Delta })

	var out []string
	for i := 0; i < len(positive) && i < n; i++ {
		out = append(out, positive[i].Rationale)
	}
	return out
}
