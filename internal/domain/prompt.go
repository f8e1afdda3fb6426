package domain

import (
	"strings"
	"time"
)

// PromptTemplates carries configurable instruction wording. Empty fields mean
// "use the built-in default".
type PromptTemplates struct {
	Generation string    `json:"generationTemplate"`
	Edit       string    `json:"editTemplate"`
	EditLine   string    `json:"editLineTemplate"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// IsZero reports whether no template is overridden.
func (t PromptTemplates) IsZero() bool {
	return strings.TrimSpace(t.Generation) == "" &&
		strings.TrimSpace(t.Edit) == "" &&
		strings.TrimSpace(t.EditLine) == ""
}

// Overlay returns t with every non-empty field of override applied on top.
func (t PromptTemplates) Overlay(override PromptTemplates) PromptTemplates {
	if strings.TrimSpace(override.Generation) != "" {
		t.Generation = override.Generation
	}
	if strings.TrimSpace(override.Edit) != "" {
		t.Edit = override.Edit
	}
	if strings.TrimSpace(override.EditLine) != "" {
		t.EditLine = override.EditLine
	}
	if override.UpdatedAt.After(t.UpdatedAt) {
		t.UpdatedAt = override.UpdatedAt
	}
	return t
}
