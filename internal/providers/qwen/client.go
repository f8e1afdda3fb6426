package qwen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listingshots/internal/domain"
	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
)

const (
	defaultBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	generationPath = "/services/aigc/multimodal-generation/generation"
)

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	BaseURL        string
	NegativePrompt string
	Watermark      bool
	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         *infra.Logger
}

// Client performs HTTP calls to the DashScope Qwen image API.
type Client struct {
	apiKey         string
	baseURL        string
	negativePrompt string
	watermark      bool
	httpClient     *http.Client
	logger         *infra.Logger
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type generationParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Watermark      *bool  `json:"watermark,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		baseURL:        baseURL,
		negativePrompt: strings.TrimSpace(opts.NegativePrompt),
		watermark:      opts.Watermark,
		httpClient:     httpClient,
		logger:         infra.LoggerOrDiscard(opts.Logger),
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate invokes the DashScope API once. Qwen has no separate system
// channel, so the instruction is sent ahead of the user text.
func (c *Client) Generate(ctx context.Context, req imagegen.ProviderRequest) (imagegen.ProviderResult, error) {
	if !c.HasCredentials() {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "qwen: " + domain.ErrMissingAPIKey.Error(), Err: domain.ErrMissingAPIKey}
	}

	var contents []generationContent
	for _, ref := range req.ReferenceImages {
		if img := encodeImage(ref); img != "" {
			contents = append(contents, generationContent{Image: img})
		}
	}
	if req.BackgroundImage != nil {
		if img := encodeImage(*req.BackgroundImage); img != "" {
			contents = append(contents, generationContent{Image: img})
		}
	}
	text := strings.TrimSpace(strings.TrimSpace(req.SystemInstruction) + "\n\n" + strings.TrimSpace(req.UserText))
	contents = append(contents, generationContent{Text: text})

	watermark := c.watermark
	payload := generationRequest{
		Model: req.Model,
		Input: generationInput{Messages: []generationMessage{{Role: "user", Content: contents}}},
		Parameters: generationParams{
			NegativePrompt: c.negativePrompt,
			Watermark:      &watermark,
			Seed:           req.Seed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "qwen: encode request", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generationPath, bytes.NewReader(body))
	if err != nil {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "qwen: build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return imagegen.ProviderResult{}, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return imagegen.ProviderResult{}, transportError(err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return imagegen.ProviderResult{}, &imagegen.ProviderError{Status: resp.StatusCode, Message: fmt.Sprintf("%s (%s)", detail.Message, detail.Code)}
		}
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "qwen: decode response", Err: err}
	}
	if decoded.Code != "" {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: fmt.Sprintf("%s (%s)", decoded.Message, decoded.Code)}
	}
	imageURL := firstImageURL(decoded)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Str("qwen_request_id", decoded.RequestID).
		Bool("has_image", imageURL != "").
		Msg("qwen: generation completed")
	return imagegen.ProviderResult{ImageURL: imageURL, Raw: raw}, nil
}

func encodeImage(img imagegen.SourceImage) string {
	if len(img.Data) > 0 {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}
	return strings.TrimSpace(img.URL)
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &imagegen.ProviderError{Status: imagegen.StatusClientClosed, Message: "qwen: request aborted", Err: err}
	}
	return &imagegen.ProviderError{Message: "qwen: " + err.Error(), Err: err}
}

func firstImageURL(resp generationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if url := strings.TrimSpace(content.Image); url != "" {
				return url
			}
		}
	}
	return ""
}
