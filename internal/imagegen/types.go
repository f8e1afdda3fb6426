package imagegen

import (
	"context"
	"strings"
)

// ShotType names a category of listing photo.
type ShotType string

const (
	ShotLifestyle         ShotType = "lifestyle"
	ShotHero              ShotType = "hero"
	ShotCloseUp           ShotType = "close-up"
	ShotFlatLay           ShotType = "flat-lay"
	ShotMacro             ShotType = "macro"
	ShotContextual        ShotType = "contextual"
	ShotThemedEnvironment ShotType = "themed-environment"
	ShotEdit              ShotType = "edit"
	shotNone              ShotType = "none"
)

// Request limits. Every requested image is a separate provider call.
const (
	MaxProductImages = 2
	MaxShotCount     = 10
	MaxTotalImages   = 40
)

const defaultUserText = "Generate the requested product image using the reference images provided."

// ShotOrder is the fixed order in which shot types are scheduled and in which
// their images appear in a response.
var ShotOrder = []ShotType{
	ShotLifestyle,
	ShotHero,
	ShotCloseUp,
	ShotFlatLay,
	ShotMacro,
	ShotContextual,
	ShotThemedEnvironment,
}

// ParseShotType maps free-form input onto a known shot type.
func ParseShotType(raw string) (ShotType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case "closeup":
		normalized = string(ShotCloseUp)
	case "flatlay":
		normalized = string(ShotFlatLay)
	case "themed", "themedenvironment":
		normalized = string(ShotThemedEnvironment)
	}
	for _, shot := range ShotOrder {
		if string(shot) == normalized {
			return shot, true
		}
	}
	if normalized == string(ShotEdit) {
		return ShotEdit, true
	}
	return "", false
}

// SourceImage is an image in provider-consumable form: either inline bytes or
// a remote URL the provider can fetch.
type SourceImage struct {
	URL      string
	Data     []byte
	MIMEType string
	Name     string
	Width    int
	Height   int
}

// IsZero reports whether the image carries neither bytes nor a URL.
func (s SourceImage) IsZero() bool {
	return len(s.Data) == 0 && strings.TrimSpace(s.URL) == ""
}

// EditSpec is a literal field substitution applied to an existing image.
type EditSpec struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ShotOptions holds the per-shot-type parameters of a request.
type ShotOptions struct {
	Count            int    `json:"count"`
	CustomContext    string `json:"customContext,omitempty"`
	BackgroundImage  string `json:"backgroundImage,omitempty"`
	NoReferenceImage bool   `json:"noReferenceImage,omitempty"`
	CreateSimilar    bool   `json:"createSimilar,omitempty"`
}

// EditPass is present on a request only when at least one edit specification
// carries a non-empty value.
type EditPass struct {
	Specs []EditSpec
	Count int
}

// GenerationRequest is one validated, user-initiated generation.
type GenerationRequest struct {
	Shots          map[ShotType]ShotOptions
	ProductImages  []string
	Edit           *EditPass
	PreferredModel string
	Seeds          []int
	Temperature    *float64
	RequestID      string
}

// GeneratedImage is a single produced image.
type GeneratedImage struct {
	URL      string   `json:"url"`
	ShotType ShotType `json:"type"`
	Seed     *int     `json:"seed,omitempty"`
}

// Response is the outcome of a successful generation.
type Response struct {
	Images       []GeneratedImage `json:"images"`
	SystemPrompt string           `json:"systemPrompt"`
	Model        string           `json:"model"`
}

// ProviderRequest is a single call to the image-generation provider.
type ProviderRequest struct {
	Model             string
	SystemInstruction string
	UserText          string
	ReferenceImages   []SourceImage
	BackgroundImage   *SourceImage
	Seed              *int
	Temperature       *float64
	RequestID         string
}

// ProviderResult is what the provider returned. ImageURL may be empty when
// the provider answered without an extractable image.
type ProviderResult struct {
	ImageURL string
	Raw      []byte
}

// Provider is the contract implemented by every image-generation backend.
type Provider interface {
	Generate(ctx context.Context, req ProviderRequest) (ProviderResult, error)
}

// AssetResolver turns asset references (store URLs, data URLs, remote URLs)
// into provider-consumable images.
type AssetResolver interface {
	ResolveLocal(ctx context.Context, ref string) (SourceImage, error)
}
