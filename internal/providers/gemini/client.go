package gemini

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// Client calls the Gemini generateContent endpoint for image models. Without
// an API key it renders deterministic synthetic images so local and CI
// environments stay fully operational.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	Temperature        *float64 `json:"temperature,omitempty"`
	Seed               *int     `json:"seed,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateContentResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults.
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
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}
}

// HasCredentials reports whether remote calls will be made.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate produces one image for req. The returned ImageURL is a data URL;
// it is empty when the model answered without an image part.
func (c *Client) Generate(ctx context.Context, req imagegen.ProviderRequest) (imagegen.ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return imagegen.ProviderResult{}, transportError(err)
	}
	if !c.HasCredentials() {
		return c.synthetic(req), nil
	}

	payload := buildRequest(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "gemini: encode request", Err: err}
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "gemini: build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return imagegen.ProviderResult{}, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return imagegen.ProviderResult{}, transportError(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return imagegen.ProviderResult{}, statusError(resp.StatusCode, raw)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{Message: "gemini: decode response", Err: err}
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{
			Message: "gemini: prompt blocked: " + decoded.PromptFeedback.BlockReason,
		}
	}

	imageURL := firstImage(decoded)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Bool("has_image", imageURL != "").
		Dur("latency", time.Since(start)).
		Msg("gemini: generateContent completed")
	return imagegen.ProviderResult{ImageURL: imageURL, Raw: raw}, nil
}

func buildRequest(req imagegen.ProviderRequest) generateContentRequest {
	var parts []part
	for _, ref := range req.ReferenceImages {
		if p, ok := imagePart(ref); ok {
			parts = append(parts, p)
		}
	}
	userText := strings.TrimSpace(req.UserText)
	if req.BackgroundImage != nil {
		if p, ok := imagePart(*req.BackgroundImage); ok {
			parts = append(parts, p)
			userText += "\nThe last image is the background to place the product in."
		}
	}
	if userText != "" {
		parts = append(parts, part{Text: userText})
	}

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:        req.Temperature,
			Seed:               req.Seed,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	if instruction := strings.TrimSpace(req.SystemInstruction); instruction != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: instruction}}}
	}
	return payload
}

func imagePart(img imagegen.SourceImage) (part, bool) {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	if len(img.Data) > 0 {
		return part{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(img.Data)}}, true
	}
	if uri := strings.TrimSpace(img.URL); uri != "" {
		return part{FileData: &fileData{MimeType: mime, FileURI: uri}}, true
	}
	return part{}, false
}

func firstImage(resp generateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return fmt.Sprintf("data:%s;base64,%s", mime, p.InlineData.Data)
			}
		}
	}
	return ""
}

func statusError(status int, raw []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &imagegen.ProviderError{Status: status, Message: apiErr.Error.Message}
	}
	message := strings.TrimSpace(string(raw))
	if message == "" {
		message = http.StatusText(status)
	}
	return &imagegen.ProviderError{Status: status, Message: message}
}

// transportError maps a failed round trip. Aborted requests are reported with
// the client-closed status so they are retried like other transient failures.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &imagegen.ProviderError{Status: imagegen.StatusClientClosed, Message: "gemini: request aborted", Err: err}
	}
	return &imagegen.ProviderError{Message: "gemini: " + err.Error(), Err: err}
}

func (c *Client) synthetic(req imagegen.ProviderRequest) imagegen.ProviderResult {
	seedPart := ""
	if req.Seed != nil {
		seedPart = strconv.Itoa(*req.Seed)
	}
	seed := deterministicSeed(req.Model, imagegen.CanonicalInstruction(req.SystemInstruction), seedPart, len(req.ReferenceImages))
	data := renderSyntheticImage(512, 512, seed)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.Model).
		Str("seed", seed).
		Msg("gemini: rendered synthetic image")
	return imagegen.ProviderResult{ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)}
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < max(width, height); x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: parseHexByte(segment[0:2]), G: parseHexByte(segment[2:4]), B: parseHexByte(segment[4:6]), A: 255}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(hasher, "%v|", p)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
