package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"listingshots/internal/domain"
	"listingshots/internal/infra"
	"listingshots/internal/sqlinline"
)

// TemplateRepositoryPG implements domain.PromptTemplateRepository on top of
// the prompt_templates table.
type TemplateRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTemplateRepository constructs a new template repository instance.
func NewTemplateRepository(exec infra.SQLExecutor) *TemplateRepositoryPG {
	return &TemplateRepositoryPG{sql: exec}
}

// Active returns the active template row, or zero templates when none exists.
func (r *TemplateRepositoryPG) Active(ctx context.Context) (domain.PromptTemplates, error) {
	if r == nil || r.sql == nil {
		return domain.PromptTemplates{}, nil
	}
	var (
		generation, edit, editLine sql.NullString
		updatedAt                  time.Time
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectActivePromptTemplates).Scan(&generation, &edit, &editLine, &updatedAt)
	if infra.IsNoRows(err) {
		return domain.PromptTemplates{}, nil
	}
	if err != nil {
		return domain.PromptTemplates{}, fmt.Errorf("select prompt templates: %w", err)
	}
	return domain.PromptTemplates{
		Generation: generation.String,
		Edit:       edit.String,
		EditLine:   editLine.String,
		UpdatedAt:  updatedAt,
	}, nil
}

// Save deactivates the current row and stores templates as the active one.
func (r *TemplateRepositoryPG) Save(ctx context.Context, templates domain.PromptTemplates) error {
	if r == nil || r.sql == nil {
		return domain.ErrStorageDisabled
	}
	var id string
	err := r.sql.QueryRow(ctx, sqlinline.QUpsertPromptTemplates, templates.Generation, templates.Edit, templates.EditLine).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert prompt templates: %w", err)
	}
	return nil
}

var _ domain.PromptTemplateRepository = (*TemplateRepositoryPG)(nil)
