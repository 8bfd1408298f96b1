// Package rerank implements the re-ranker (C9): a compact LLM prompt
// enumerating candidates, parsed back into a permutation, grounded on the
// teacher's Ollama HTTP client idioms (internal/search/classifier.go,
// internal/search/mlx_reranker.go) for request construction, context
// timeouts, and JSON response parsing.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
)

// DefaultTimeout is the hard deadline applied when none is configured.
const DefaultTimeout = 25 * time.Second

// DefaultConfidence is the confidence assigned to a fallback (unreranked)
// ordering, per spec §4.9.
const DefaultConfidence = 0.5

// maxSnippetChars bounds how much of a candidate's content goes into the
// prompt, keeping the request compact.
const maxSnippetChars = 200

// Client sends rerank requests to a chat-completions-shaped LLM endpoint.
type Client interface {
	// Complete sends prompt and returns the raw model response text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Reranker is the re-ranker capability (C9).
type Reranker struct {
	client     Client
	timeout    time.Duration
	maxResults int
}

// New creates a Reranker. maxResults bounds how many candidates are
// retained in the output permutation (spec's "at most maxResults").
func New(client Client, timeout time.Duration, maxResults int) *Reranker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reranker{client: client, timeout: timeout, maxResults: maxResults}
}

// Rerank sends candidates to the LLM and returns them reordered per the
// parsed permutation, with monotonically decreasing RerankedScore values.
// On any failure (timeout, transport error, unparseable response) it
// returns the input order unchanged with DefaultConfidence (spec §4.9).
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retrieval.SearchResult) []retrieval.SearchResult {
	out, _ := r.RerankWithStatus(ctx, query, candidates)
	return out
}

// RerankWithStatus behaves like Rerank but additionally reports whether the
// LLM call actually succeeded and produced a usable permutation, so callers
// can surface a `reranked` metadata flag (spec §8 scenario 4: a timed-out
// re-ranker still returns results, with `reranked=false`).
func (r *Reranker) RerankWithStatus(ctx context.Context, query string, candidates []retrieval.SearchResult) ([]retrieval.SearchResult, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}

	limit := r.maxResults
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt := buildPrompt(query, candidates, limit)
	response, err := r.client.Complete(ctx, prompt)
	if err != nil {
		return fallback(candidates), false
	}

	indices, ok := parseRankedIndices(response, len(candidates))
	if !ok {
		return fallback(candidates), false
	}

	return applyPermutation(candidates, indices, limit), true
}

// buildPrompt enumerates each candidate's index, compact metadata, and a
// truncated snippet, instructing the model to return a ranked-indices JSON
// object (spec §4.9).
func buildPrompt(query string, candidates []retrieval.SearchResult, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString("Rank the following code candidates by relevance to the query.\n")
	fmt.Fprintf(&b, "Select and order at most %d of them.\n", limit)
	b.WriteString("Respond with ONLY a JSON object: {\"rankedIndices\": [...]} using the candidate indices below.\n\n")

	for i, c := range candidates {
		name := ""
		if c.Chunk != nil {
			name = c.Chunk.FunctionName
			if name == "" {
				name = c.Chunk.ClassName
			}
		}
		snippet := c.Snippet
		if len(snippet) > maxSnippetChars {
			snippet = snippet[:maxSnippetChars] + "..."
		}
		fmt.Fprintf(&b, "[%d] %s (%s) %s\n%s\n\n", i, c.ID, name, c.Context, snippet)
	}

	return b.String()
}

// rerankResponse is the expected JSON shape of an LLM's response.
type rerankResponse struct {
	RankedIndices []int `json:"rankedIndices"`
}

// parseRankedIndices extracts the first well-formed JSON object from text
// and validates its indices are in range, deduplicating while preserving
// order (spec §4.9 "Parses the first JSON object found in the response").
func parseRankedIndices(text string, candidateCount int) ([]int, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}
	// Decode reads one JSON value and ignores whatever text follows it.
	var resp rerankResponse
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&resp); err != nil {
		return nil, false
	}
	if len(resp.RankedIndices) == 0 {
		return nil, false
	}

	seen := make(map[int]struct{}, len(resp.RankedIndices))
	out := make([]int, 0, len(resp.RankedIndices))
	for _, idx := range resp.RankedIndices {
		if idx < 0 || idx >= candidateCount {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// applyPermutation reorders candidates per indices (truncated to limit),
// assigns monotonically decreasing RerankedScore, then fills any unused
// slots from the remaining candidates in their original order.
func applyPermutation(candidates []retrieval.SearchResult, indices []int, limit int) []retrieval.SearchResult {
	if len(indices) > limit {
		indices = indices[:limit]
	}

	used := make(map[int]struct{}, len(indices))
	out := make([]retrieval.SearchResult, 0, limit)

	score := 1.0
	step := 1.0 / float64(limit+1)
	for _, idx := range indices {
		used[idx] = struct{}{}
		r := candidates[idx]
		rs := score
		r.RerankedScore = &rs
		out = append(out, r)
		score -= step
	}

	for i, c := range candidates {
		if len(out) >= limit {
			break
		}
		if _, ok := used[i]; ok {
			continue
		}
		rs := score
		c.RerankedScore = &rs
		out = append(out, c)
		score -= step
	}

	return out
}

// fallback returns candidates in their input order with DefaultConfidence,
// used whenever the LLM call or its response fails (spec §4.9).
func fallback(candidates []retrieval.SearchResult) []retrieval.SearchResult {
	out := make([]retrieval.SearchResult, len(candidates))
	score := 1.0
	step := 1.0 / float64(len(candidates)+1)
	for i, c := range candidates {
		rs := score
		c.RerankedScore = &rs
		c.Score = DefaultConfidence
		out[i] = c
		score -= step
	}
	return out
}

// HTTPClient is a Client backed by either an OpenAI-chat-completions-shaped
// HTTP endpoint or an Anthropic-messages-shaped one, the two transport
// shapes spec §6's llmRerankerBaseUrl config targets ("an OpenAI-chat-
// compatible endpoint (or Anthropic messages when model name hints
// Claude)").
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	anthropic  bool
}

// anthropicVersion is the API version header Anthropic's messages endpoint
// requires on every request.
const anthropicVersion = "2023-06-01"

// defaultMaxTokens bounds the Anthropic messages response length; the
// re-ranker's reply is a short JSON object, not free-form prose.
const defaultMaxTokens = 1024

// NewHTTPClient creates an HTTPClient posting to baseURL+"/chat/completions"
// (OpenAI-chat shape), or to baseURL+"/messages" with Anthropic's request/
// response shape when model's name hints Claude (spec §6).
func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		anthropic:  isClaudeModel(model),
	}
}

// isClaudeModel reports whether model's name hints an Anthropic Claude
// model, the trigger spec §6 describes for switching wire shapes.
func isClaudeModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// anthropicRequest is the Anthropic messages API request shape.
type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

// anthropicResponse is the Anthropic messages API response shape: content
// is a list of typed blocks, of which only "text" blocks carry the model's
// reply text.
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete implements Client, dispatching to the OpenAI-chat or
// Anthropic-messages wire shape per c.anthropic (spec §6).
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.anthropic {
		return c.completeAnthropic(ctx, prompt)
	}
	return c.completeOpenAI(ctx, prompt)
}

func (c *HTTPClient) completeOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rerank failed: status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode rerank response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("rerank response had no choices")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *HTTPClient) completeAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rerank failed: status %d", resp.StatusCode)
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode rerank response: %w", err)
	}
	for _, block := range result.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("rerank response had no text content")
}

var _ Client = (*HTTPClient)(nil)
