package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/pizzabot-go/internal/constants"
	"github.com/kapu/pizzabot-go/internal/service/cache"
	"github.com/kapu/pizzabot-go/internal/util"
	"github.com/kapu/pizzabot-go/pkg/errors"
	"go.uber.org/zap"
)

const maxSummarySentences = 2

// Service answers single-turn lookups against the Wikipedia REST API.
// Summaries are memoized in Redis because repeat questions cluster heavily.
type Service struct {
	httpClient *http.Client
	cache      *cache.CacheService
	logger     *zap.Logger
	baseURL    string
}

func NewService(baseURL string, cacheService *cache.CacheService, logger *zap.Logger) *Service {
	return &Service{
		httpClient: &http.Client{
			Timeout: constants.APIConfig.WikipediaTimeout,
		},
		cache:   cacheService,
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type searchResponse struct {
	Pages []struct {
		Title string `json:"title"`
	} `json:"pages"`
}

type summaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ExtractHTML string `json:"extract_html"`
}

// Lookup resolves a phrase to the lead summary of the best-matching article.
// The empty phrase and a phrase with no matching article both return a
// not-found error; transport failures surface as API errors.
func (s *Service) Lookup(ctx context.Context, phrase string) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", errors.NewNotFoundError("lookup phrase", phrase)
	}

	cacheKey := fmt.Sprintf("wiki:summary:%s", util.Normalize(phrase))
	var cached string
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		s.logger.Debug("Summary cache hit", zap.String("phrase", phrase))
		return cached, nil
	}

	title, err := s.searchTitle(ctx, phrase)
	if err != nil {
		return "", err
	}

	summary, err := s.fetchSummary(ctx, title)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, cacheKey, summary, constants.CacheTTL.Summary); err != nil {
		s.logger.Warn("Summary cache write failed", zap.Error(err))
	}

	return summary, nil
}

func (s *Service) searchTitle(ctx context.Context, phrase string) (string, error) {
	endpoint := fmt.Sprintf("%s/w/rest.php/v1/search/page?q=%s&limit=1",
		s.baseURL, url.QueryEscape(phrase))

	var result searchResponse
	if err := s.getJSON(ctx, endpoint, &result); err != nil {
		return "", err
	}

	if len(result.Pages) == 0 {
		s.logger.Debug("No article found", zap.String("phrase", phrase))
		return "", errors.NewNotFoundError("article", phrase)
	}

	return result.Pages[0].Title, nil
}

func (s *Service) fetchSummary(ctx context.Context, title string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/rest_v1/page/summary/%s",
		s.baseURL, url.PathEscape(title))

	var result summaryResponse
	if err := s.getJSON(ctx, endpoint, &result); err != nil {
		return "", err
	}

	text := result.Extract
	if result.ExtractHTML != "" {
		if cleaned := stripMarkup(result.ExtractHTML); cleaned != "" {
			text = cleaned
		}
	}
	if text == "" {
		return "", errors.NewNotFoundError("summary", title)
	}

	return firstSentences(text, maxSummarySentences), nil
}

func (s *Service) getJSON(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}
	req.Header.Set("User-Agent", "pizzabot-go/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("knowledge request failed", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("article", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewAPIError(
			fmt.Sprintf("knowledge service error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{"url": endpoint},
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.NewAPIError("failed to decode response", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}
	return nil
}

// stripMarkup flattens the HTML extract to plain text.
func stripMarkup(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

// firstSentences trims a summary to its first n sentences, keeping the whole
// text when sentence boundaries are unclear.
func firstSentences(text string, n int) string {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '.' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' {
			continue
		}
		count++
		if count == n {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return strings.TrimSpace(text)
}
