package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/pizzabot-go/pkg/errors"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	geminiVisionModel = "gemini-2.0-flash"
	openaiVisionModel = openai.ChatModelGPT4oMini
	maxImageBytes     = 8 << 20

	labelPrompt = "List up to five short labels describing this photo, " +
		"comma separated, most salient first. Labels only, no other text."
)

// Tagger labels a user-sent photo. Gemini is the primary provider; when it
// is unconfigured or fails, the OpenAI fallback takes over.
type Tagger struct {
	gemini     *genai.Client
	openaiAPI  *openai.Client
	httpClient *http.Client
	logger     *zap.Logger
}

func NewTagger(ctx context.Context, geminiKey, openaiKey string, enableFallback bool, logger *zap.Logger) (*Tagger, error) {
	t := &Tagger{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}

	if geminiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  geminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			logger.Warn("Gemini client init failed", zap.Error(err))
		} else {
			t.gemini = client
		}
	}

	if openaiKey != "" && enableFallback {
		client := openai.NewClient(option.WithAPIKey(openaiKey))
		t.openaiAPI = &client
	}

	if t.gemini == nil && t.openaiAPI == nil {
		return nil, fmt.Errorf("no vision provider configured")
	}

	return t, nil
}

// Labels tags the image at imageURL and returns a short label list, most
// salient first.
func (t *Tagger) Labels(ctx context.Context, imageURL string) ([]string, error) {
	if t.gemini != nil {
		labels, err := t.labelsWithGemini(ctx, imageURL)
		if err == nil {
			return labels, nil
		}
		t.logger.Warn("Gemini labeling failed, trying fallback", zap.Error(err))
	}

	if t.openaiAPI != nil {
		return t.labelsWithOpenAI(ctx, imageURL)
	}

	return nil, errors.NewAPIError("image labeling unavailable", 503, map[string]any{
		"url": imageURL,
	})
}

func (t *Tagger) labelsWithGemini(ctx context.Context, imageURL string) ([]string, error) {
	data, mimeType, err := t.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	resp, err := t.gemini.Models.GenerateContent(ctx, geminiVisionModel, []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: labelPrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			},
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	text := extractGeminiText(resp)
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}
	return splitLabels(text), nil
}

func (t *Tagger) labelsWithOpenAI(ctx context.Context, imageURL string) ([]string, error) {
	resp, err := t.openaiAPI.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openaiVisionModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(labelPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageURL,
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(100),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty response from OpenAI")
	}
	return splitLabels(resp.Choices[0].Message.Content), nil
}

func (t *Tagger) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch failed: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func splitLabels(text string) []string {
	var labels []string
	for _, part := range strings.Split(text, ",") {
		label := strings.ToLower(strings.TrimSpace(part))
		label = strings.Trim(label, ".")
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
