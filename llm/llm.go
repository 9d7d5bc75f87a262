// Package llm is a minimal OpenAI-compatible chat completion client used for
// semantic page classification.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/scholarscout/scraper/models"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// ErrMalformed is returned when the model reply is not a usable verdict
var ErrMalformed = errors.New("malformed classification response")

// ErrStatus is returned for non-2xx API responses
var ErrStatus = errors.New("unexpected API status")

const systemPrompt = "You are a scholarship classification assistant. Return only valid JSON."

const classificationPrompt = `Analyze this web page content and classify it.

PAGE CONTENT:
%s

CLASSIFY AS ONE OF:
1. "APPLICATION" - This is a direct scholarship application page where students can apply, submit forms, or access the application portal
2. "INFO" - This is an informational page about a specific scholarship with eligibility requirements and how to apply (but not the application itself)
3. "ARTICLE" - This is a blog post, news article, or general content ABOUT scholarships (not a specific scholarship)
4. "OTHER" - Not scholarship related

Return ONLY a JSON object with these fields:
- "classification": one of APPLICATION, INFO, ARTICLE, OTHER
- "confidence": 0.0-1.0 how confident you are
- "scholarship_name": the name of the specific scholarship if found, else null
- "direct_apply_url": URL to apply if mentioned, else null
- "reason": one sentence explaining your classification

Example response:
{"classification": "INFO", "confidence": 0.9, "scholarship_name": "Gates Scholarship", "direct_apply_url": "https://apply.gates.org", "reason": "Page describes eligibility and benefits but links to separate application portal."}
`

// Config contains client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns the classification defaults without an API key
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Timeout:     30 * time.Second,
		Temperature: 0.2,
		MaxTokens:   300,
	}
}

// Client talks to a chat completions endpoint
type Client struct {
	client *resty.Client
	config Config
}

// NewClient creates a Client. Empty fields fall back to DefaultConfig.
func NewClient(config Config) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Temperature <= 0 {
		config.Temperature = defaults.Temperature
	}

	client := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetAuthToken(config.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{client: client, config: config}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.config.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	Classification  models.Classification `json:"classification"`
	Confidence      float64               `json:"confidence"`
	ScholarshipName *string               `json:"scholarship_name"`
	DirectApplyURL  *string               `json:"direct_apply_url"`
	Reason          string                `json:"reason"`
}

// Classify asks the model for a four-way verdict on page content. The
// caller is expected to truncate content to its budget first.
func (c *Client) Classify(ctx context.Context, content string) (models.ClassificationResult, error) {
	req := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(classificationPrompt, content)},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		return models.ClassificationResult{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return models.ClassificationResult{}, fmt.Errorf("%w: no choices", ErrMalformed)
	}

	return ParseVerdict(out.Choices[0].Message.Content)
}

var (
	fenceOpenRe  = regexp.MustCompile("^```\\w*\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// ParseVerdict decodes a model reply, tolerating a surrounding markdown
// code fence. Labels outside the four-way taxonomy are rejected.
func ParseVerdict(text string) (models.ClassificationResult, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpenRe.ReplaceAllString(text, "")
		text = fenceCloseRe.ReplaceAllString(text, "")
	}

	var v verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	v.Classification = models.Classification(strings.ToUpper(strings.TrimSpace(string(v.Classification))))
	switch v.Classification {
	case models.ClassApplication, models.ClassInfo, models.ClassArticle, models.ClassOther:
	default:
		return models.ClassificationResult{}, fmt.Errorf("%w: unknown classification %q", ErrMalformed, v.Classification)
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	return models.ClassificationResult{
		Classification:  v.Classification,
		Confidence:      v.Confidence,
		ScholarshipName: nonEmpty(v.ScholarshipName),
		DirectApplyURL:  nonEmpty(v.DirectApplyURL),
		Reason:          v.Reason,
		AIUsed:          true,
	}, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}
