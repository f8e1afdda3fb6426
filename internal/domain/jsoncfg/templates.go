package jsoncfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"listingshots/internal/domain"
)

var placeholders = map[string][]string{
	"generationTemplate": {"{{IMAGE_COUNT}}", "{{SHOT_TYPE}}"},
	"editTemplate":       {"{{ALLOWED_CHANGES}}"},
	"editLineTemplate":   {"{{FIELD}}", "{{VALUE}}"},
}

// LoadTemplates reads template overrides from a JSON file. A missing file or
// an empty path yields zero templates.
func LoadTemplates(path string) (domain.PromptTemplates, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.PromptTemplates{}, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.PromptTemplates{}, nil
	}
	if err != nil {
		return domain.PromptTemplates{}, fmt.Errorf("jsoncfg: read templates: %w", err)
	}
	return ParseTemplates(raw)
}

// ParseTemplates decodes and validates a templates document.
func ParseTemplates(raw []byte) (domain.PromptTemplates, error) {
	var tpl domain.PromptTemplates
	if len(bytes.TrimSpace(raw)) == 0 {
		return tpl, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tpl); err != nil {
		return domain.PromptTemplates{}, fmt.Errorf("%w: templates json: %v", domain.ErrInvalidRequest, err)
	}
	if err := ValidateTemplates(tpl); err != nil {
		return domain.PromptTemplates{}, err
	}
	return tpl, nil
}

// ValidateTemplates checks that every overridden template keeps its
// required placeholders.
func ValidateTemplates(tpl domain.PromptTemplates) error {
	fields := map[string]string{
		"generationTemplate": tpl.Generation,
		"editTemplate":       tpl.Edit,
		"editLineTemplate":   tpl.EditLine,
	}
	for _, name := range []string{"generationTemplate", "editTemplate", "editLineTemplate"} {
		value := fields[name]
		if strings.TrimSpace(value) == "" {
			continue
		}
		for _, token := range placeholders[name] {
			if !strings.Contains(value, token) {
				return fmt.Errorf("%w: %s must contain %s", domain.ErrInvalidRequest, name, token)
			}
		}
	}
	return nil
}
