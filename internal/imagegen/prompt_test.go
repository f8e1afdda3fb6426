package imagegen

import (
	"strings"
	"testing"
)

func TestSynthesizeIsDeterministicWithoutNonce(t *testing.T) {
	synth := NewSynthesizer(Templates{})

	first := synth.Synthesize(ShotLifestyle, 3, "on a kitchen counter", nil)
	second := synth.Synthesize(ShotLifestyle, 3, "on a kitchen counter", nil)

	if !strings.HasPrefix(first, "[nonce:") {
		t.Fatalf("expected nonce prefix, got %q", first)
	}
	if first == second {
		t.Fatalf("expected distinct nonces across calls")
	}
	if StripNonce(first) != StripNonce(second) {
		t.Fatalf("instructions differ after stripping nonce:\n%s\n---\n%s", first, second)
	}
}

func TestSynthesizeGenerationTemplate(t *testing.T) {
	synth := NewSynthesizer(Templates{})

	got := synth.Synthesize(ShotThemedEnvironment, 2, "", nil)
	if !strings.Contains(got, "2-image") {
		t.Fatalf("expected image count substituted, got %q", got)
	}
	if !strings.Contains(got, shotPhrases[ShotThemedEnvironment]) {
		t.Fatalf("expected expanded themed-environment phrase, got %q", got)
	}
	if strings.Contains(got, "{{") {
		t.Fatalf("unsubstituted placeholder in %q", got)
	}
	if strings.Contains(got, "SCENE OVERRIDE") {
		t.Fatalf("unexpected scene override without custom context")
	}
}

func TestSynthesizeSceneOverridePrecedesTemplate(t *testing.T) {
	synth := NewSynthesizer(Templates{})

	got := StripNonce(synth.Synthesize(ShotHero, 1, "  snowy mountain cabin  ", nil))
	if !strings.HasPrefix(got, "SCENE OVERRIDE") {
		t.Fatalf("expected override block first, got %q", got)
	}
	if !strings.Contains(got, "takes precedence") || !strings.Contains(got, "snowy mountain cabin") {
		t.Fatalf("override block incomplete: %q", got)
	}
}

func TestSynthesizeEditTemplate(t *testing.T) {
	synth := NewSynthesizer(Templates{})

	got := synth.Synthesize(ShotEdit, 1, "", []EditSpec{{Field: "Name", Value: "Alice"}, {Field: "number", Value: "  "}})
	if !strings.Contains(got, "ALLOWED CHANGES") {
		t.Fatalf("expected edit template, got %q", got)
	}
	if !strings.Contains(got, `- Replace the NAME with "Alice".`) {
		t.Fatalf("expected NAME line, got %q", got)
	}
	if strings.Contains(got, "NUMBER") {
		t.Fatalf("blank specification must not render a line: %q", got)
	}
}

func TestSynthesizeEditBackgroundField(t *testing.T) {
	synth := NewSynthesizer(Templates{})

	got := synth.Synthesize(ShotEdit, 2, "", []EditSpec{{Field: "background", Value: "navy blue"}})
	if !strings.Contains(got, `BACKGROUND COLOR with "navy blue"`) {
		t.Fatalf("expected BACKGROUND COLOR line, got %q", got)
	}
}

func TestSynthesizeUsesConfiguredTemplates(t *testing.T) {
	synth := NewSynthesizer(Templates{
		Generation: "Shoot {{IMAGE_COUNT}} x {{SHOT_TYPE}}",
		EditLine:   "* {{FIELD}} => {{VALUE}}",
	})

	if got := StripNonce(synth.Synthesize(ShotMacro, 5, "", nil)); !strings.HasPrefix(got, "Shoot 5 x macro") {
		t.Fatalf("configured generation template ignored: %q", got)
	}
	edit := synth.Synthesize(ShotEdit, 1, "", []EditSpec{{Field: "title", Value: "Sale"}})
	if !strings.Contains(edit, "* TITLE => Sale") {
		t.Fatalf("configured edit line template ignored: %q", edit)
	}
	if !strings.Contains(edit, "ALLOWED CHANGES") {
		t.Fatalf("empty edit template should fall back to default: %q", edit)
	}
}

func TestIsDuplicateInstruction(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		candidate string
		want      bool
	}{
		{"identical", "[nonce:aa11]\nshoot 3 images", "[nonce:bb22]\nshoot 3 images", true},
		{"count differs", "shoot 3 images", "shoot 12 images", true},
		{"whitespace differs", "shoot   3\nimages", "shoot 4 images", true},
		{"contained", "intro\n\n---\n\nshoot 3 images", "shoot 1 images", true},
		{"different text", "shoot 3 hero images", "shoot 3 macro images", false},
		{"empty candidate", "anything", "[nonce:abc]", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateInstruction(tt.existing, tt.candidate); got != tt.want {
				t.Fatalf("IsDuplicateInstruction(%q, %q) = %v, want %v", tt.existing, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestTranscriptDeduplicatesAcrossNonces(t *testing.T) {
	synth := NewSynthesizer(Templates{})
	var transcript Transcript

	for i := 0; i < 4; i++ {
		transcript.Add(synth.Synthesize(ShotHero, 4, "", nil))
	}
	transcript.Add(synth.Synthesize(ShotMacro, 1, "", nil))

	if transcript.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d: %v", transcript.Len(), transcript.String())
	}
	if strings.Contains(transcript.String(), "[nonce:") {
		t.Fatalf("transcript must not keep nonces: %q", transcript.String())
	}
	if !strings.Contains(transcript.String(), transcriptSeparator) {
		t.Fatalf("expected entries joined by separator")
	}
}
