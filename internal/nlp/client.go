package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kapu/pizzabot-go/internal/constants"
	"github.com/kapu/pizzabot-go/pkg/errors"
	"go.uber.org/zap"
)

// Parser is the linguistic-analysis boundary the dialogue core depends on.
// Parse yields a dependency analysis of one sentence; Similarity is a
// symmetric score in [0, 1] between two strings.
type Parser interface {
	Parse(ctx context.Context, text string) (*Sentence, error)
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Client talks to a spaCy-compatible sidecar over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: constants.APIConfig.NLPTimeout,
		},
		logger: logger,
	}
}

type parseRequest struct {
	Text string `json:"text"`
}

type similarityRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type similarityResponse struct {
	Score float64 `json:"score"`
}

func (c *Client) Parse(ctx context.Context, text string) (*Sentence, error) {
	var sentence Sentence
	if err := c.doRequest(ctx, "/parse", parseRequest{Text: text}, &sentence); err != nil {
		c.logger.Warn("Sentence analysis failed", zap.Error(err))
		return nil, errors.NewParseError("linguistic analysis failed", text, err)
	}

	if err := validateTokens(sentence.Tokens); err != nil {
		c.logger.Warn("Sentence analysis rejected", zap.Error(err))
		return nil, errors.NewParseError("malformed linguistic analysis", text, err)
	}

	if sentence.Text == "" {
		sentence.Text = text
	}
	return &sentence, nil
}

// validateTokens rejects analyses with duplicate token indices or head links
// that point at no token. Downstream tree walks rely on both.
func validateTokens(tokens []Token) error {
	indices := make(map[int]bool, len(tokens))
	for _, tok := range tokens {
		if indices[tok.Index] {
			return fmt.Errorf("duplicate token index %d", tok.Index)
		}
		indices[tok.Index] = true
	}
	for _, tok := range tokens {
		if !indices[tok.Head] {
			return fmt.Errorf("token %d has dangling head %d", tok.Index, tok.Head)
		}
	}
	return nil
}

func (c *Client) Similarity(ctx context.Context, a, b string) (float64, error) {
	var resp similarityResponse
	if err := c.doRequest(ctx, "/similarity", similarityRequest{A: a, B: b}, &resp); err != nil {
		return 0, err
	}

	if resp.Score < 0 || resp.Score > 1 {
		return 0, fmt.Errorf("similarity score out of range: %f", resp.Score)
	}
	return resp.Score, nil
}

func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Similarity(ctx, "ping", "ping")
	return err == nil
}

func (c *Client) doRequest(ctx context.Context, path string, reqBody, respBody any) error {
	url := c.baseURL + path

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return errors.NewAPIError("failed to marshal request", 400, map[string]any{
			"url": url,
		}).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": url,
		}).WithCause(err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("request failed", 500, map[string]any{
			"url": url,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return errors.NewAPIError(
			fmt.Sprintf("NLP service error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"url":  url,
				"body": string(bodyBytes),
			},
		)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return errors.NewAPIError("failed to decode response", 500, map[string]any{
				"url": url,
			}).WithCause(err)
		}
	}

	return nil
}
