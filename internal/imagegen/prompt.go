package imagegen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"listingshots/internal/domain"
)

const (
	placeholderImageCount     = "{{IMAGE_COUNT}}"
	placeholderShotType       = "{{SHOT_TYPE}}"
	placeholderAllowedChanges = "{{ALLOWED_CHANGES}}"
	placeholderField          = "{{FIELD}}"
	placeholderValue          = "{{VALUE}}"

	transcriptSeparator = "\n\n---\n\n"
)

// DefaultGenerationTemplate is used for scene generation when no override is configured.
const DefaultGenerationTemplate = `You are a professional product photographer producing e-commerce listing images.
Create one image of a {{IMAGE_COUNT}}-image {{SHOT_TYPE}} series for the product shown in the reference image(s).
Keep the product identical to the reference: same shape, colors, materials, labels, printed text and proportions. Do not add, remove or redesign any part of the product.
Use soft, natural lighting with the product in sharp focus as the clear subject of the frame.
Return one photorealistic image with no borders, captions, watermarks or collage layout.`

// DefaultEditTemplate is used when the request carries edit specifications.
const DefaultEditTemplate = `You are retouching an existing product listing image. Reproduce the reference image exactly and change ONLY the items listed below.
ALLOWED CHANGES:
{{ALLOWED_CHANGES}}
Keep layout, typography style, colors, product, lighting and composition identical to the reference.
Produce {{IMAGE_COUNT}} edited image(s).`

// DefaultEditLineTemplate renders a single allowed change.
const DefaultEditLineTemplate = `- Replace the {{FIELD}} with "{{VALUE}}".`

// Templates holds the configurable instruction wording. Empty fields fall
// back to the built-in defaults.
type Templates = domain.PromptTemplates

// DefaultTemplates returns the built-in template set.
func DefaultTemplates() Templates {
	return Templates{
		Generation: DefaultGenerationTemplate,
		Edit:       DefaultEditTemplate,
		EditLine:   DefaultEditLineTemplate,
	}
}

// WithDefaults fills every empty template with its built-in default.
func WithDefaults(t Templates) Templates {
	return DefaultTemplates().Overlay(t)
}

var shotPhrases = map[ShotType]string{
	ShotThemedEnvironment: "themed environment (the product placed inside a styled, immersive scene built around a seasonal or aesthetic theme, where props, color palette and lighting all reinforce that theme while the product stays the focal point)",
	ShotFlatLay:           "flat-lay (shot from directly above with complementary props arranged around the product)",
	ShotMacro:             "macro (extreme close detail of surface texture and craftsmanship)",
}

func shotPhrase(shot ShotType) string {
	if phrase, ok := shotPhrases[shot]; ok {
		return phrase
	}
	return string(shot)
}

// Synthesizer renders instructions from templates. It performs no I/O.
type Synthesizer struct {
	templates Templates
	nonce     func() string
	upper     cases.Caser
}

// NewSynthesizer builds a synthesizer over the given templates.
func NewSynthesizer(templates Templates) *Synthesizer {
	return &Synthesizer{
		templates: WithDefaults(templates),
		nonce:     randomNonce,
		upper:     cases.Upper(language.Und),
	}
}

// Templates returns the effective template set.
func (s *Synthesizer) Templates() Templates {
	return s.templates
}

// Synthesize builds the instruction for one image of a shot type. The edit
// template family is used whenever edits carry at least one non-empty value.
func (s *Synthesizer) Synthesize(shot ShotType, count int, customContext string, edits []EditSpec) string {
	var body string
	if lines := s.allowedChanges(edits); len(lines) > 0 {
		body = strings.ReplaceAll(s.templates.Edit, placeholderAllowedChanges, strings.Join(lines, "\n"))
		body = strings.ReplaceAll(body, placeholderImageCount, strconv.Itoa(count))
	} else {
		body = strings.ReplaceAll(s.templates.Generation, placeholderImageCount, strconv.Itoa(count))
		body = strings.ReplaceAll(body, placeholderShotType, shotPhrase(shot))
		if scene := strings.TrimSpace(customContext); scene != "" {
			body = sceneOverride(scene) + "\n\n" + body
		}
	}
	return nonceToken(s.nonce()) + "\n" + body
}

func (s *Synthesizer) allowedChanges(edits []EditSpec) []string {
	var lines []string
	for _, edit := range edits {
		value := strings.TrimSpace(edit.Value)
		if value == "" {
			continue
		}
		field := s.upper.String(strings.TrimSpace(edit.Field))
		if field == "BACKGROUND" {
			field = "BACKGROUND COLOR"
		}
		line := strings.ReplaceAll(s.templates.EditLine, placeholderField, field)
		line = strings.ReplaceAll(line, placeholderValue, value)
		lines = append(lines, line)
	}
	return lines
}

func sceneOverride(scene string) string {
	return fmt.Sprintf("SCENE OVERRIDE (this takes precedence over any default scene or setting described below):\n%s", scene)
}

// HasEditValues reports whether any specification carries a non-empty value.
func HasEditValues(edits []EditSpec) bool {
	for _, edit := range edits {
		if strings.TrimSpace(edit.Value) != "" {
			return true
		}
	}
	return false
}

var (
	nonceRegexp = regexp.MustCompile(`\[nonce:[0-9a-f]+\]\s*`)
	digitRegexp = regexp.MustCompile(`[0-9]+`)
	spaceRegexp = regexp.MustCompile(`\s+`)
)

func nonceToken(value string) string {
	return "[nonce:" + value + "]"
}

func randomNonce() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "000000000000"
	}
	return hex.EncodeToString(buf[:])
}

// StripNonce removes nonce tokens from an instruction.
func StripNonce(instruction string) string {
	return strings.TrimSpace(nonceRegexp.ReplaceAllString(instruction, ""))
}

// CanonicalInstruction returns the comparison form of an instruction: nonce
// removed, every number replaced by '#', whitespace collapsed.
func CanonicalInstruction(instruction string) string {
	out := nonceRegexp.ReplaceAllString(instruction, "")
	out = digitRegexp.ReplaceAllString(out, "#")
	out = spaceRegexp.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// IsDuplicateInstruction reports whether candidate is already covered by
// existing once both are reduced to canonical form.
func IsDuplicateInstruction(existing, candidate string) bool {
	c := CanonicalInstruction(candidate)
	if c == "" {
		return true
	}
	return strings.Contains(CanonicalInstruction(existing), c)
}

// Transcript accumulates the distinct instructions used for one request.
type Transcript struct {
	entries []string
}

// Add appends the instruction unless an equivalent one is already present.
func (t *Transcript) Add(instruction string) bool {
	for _, existing := range t.entries {
		if IsDuplicateInstruction(existing, instruction) {
			return false
		}
	}
	t.entries = append(t.entries, StripNonce(instruction))
	return true
}

// Merge adds every entry of other in order.
func (t *Transcript) Merge(other Transcript) {
	for _, entry := range other.entries {
		t.Add(entry)
	}
}

// Len returns the number of distinct entries.
func (t Transcript) Len() int {
	return len(t.entries)
}

func (t Transcript) String() string {
	return strings.Join(t.entries, transcriptSeparator)
}
