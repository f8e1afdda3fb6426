package domain

import "context"

// PromptTemplateRepository loads template overrides.
type PromptTemplateRepository interface {
	Active(ctx context.Context) (PromptTemplates, error)
	Save(ctx context.Context, templates PromptTemplates) error
}
