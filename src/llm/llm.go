package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"screen-translate-llm/src/logutil"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
	defaultTimeout = 45 * time.Second
)

// ErrInvalidResponse is returned when the API answers without the expected
// candidates/content/parts structure.
var ErrInvalidResponse = errors.New("invalid response from Gemini API")

// Request is one translation job. Never mutated after it is built.
type Request struct {
	Image          []byte // PNG
	APIKey         string
	TargetLanguage string
	Model          string
}

// Translator turns an image into translated text.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Gemini generateContent endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Gemini API structures
type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content *content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

// New creates a client. Zero values fall back to the public endpoint and a 45s timeout.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, httpClient: hc}
}

// BuildPrompt returns the fixed instruction sent next to the image.
func BuildPrompt(targetLanguage string) string {
	return fmt.Sprintf("Please extract and translate any text you can see in this image to %s. "+
		"If there's no text in the image, please respond with \"No text detected in the image.\" "+
		"If the text is already in %s, please respond with the original text. "+
		"Please provide only the translation without any additional explanation or formatting.",
		targetLanguage, targetLanguage)
}

// Translate sends the image with the translation prompt. There are no retries:
// a failed call surfaces immediately.
func (c *Client) Translate(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("API key is required")
	}
	if len(req.Image) == 0 {
		return "", fmt.Errorf("image is empty")
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: BuildPrompt(req.TargetLanguage)},
				{InlineData: &inlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(req.Image),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     0.1,
			TopK:            32,
			TopP:            1,
			MaxOutputTokens: 4096,
		},
	}

	logutil.L(ctx).Debug("llm: generateContent",
		zap.String("model", model),
		zap.String("language", req.TargetLanguage),
		zap.String("key", logutil.RedactKey(req.APIKey)),
		zap.Int("image_bytes", len(req.Image)))

	text, err := c.generate(ctx, model, req.APIKey, body)
	if err != nil {
		return "", fmt.Errorf("failed to translate image: %w", err)
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, model, apiKey string, body generateRequest) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("API error: %s", msg)
	}
	if decodeErr != nil {
		return "", ErrInvalidResponse
	}

	return extractText(parsed)
}

func extractText(resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrInvalidResponse
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

// Ping checks that the key can see the model. Used at startup.
func (c *Client) Ping(ctx context.Context, apiKey, model string) error {
	if apiKey == "" {
		return fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s?key=%s", c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", redactURLError(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return nil
}

// redactURLError drops the URL (it carries the key) from transport errors.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
