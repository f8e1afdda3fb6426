package imagegen

import (
	"fmt"
	"strings"

	"listingshots/internal/domain"
)

// RequestPayload is the JSON body accepted by the generation endpoints.
type RequestPayload struct {
	Shots              map[string]ShotOptions `json:"shots"`
	ProductImages      []string               `json:"productImages"`
	EditSpecifications []EditSpec             `json:"editSpecifications,omitempty"`
	EditCount          int                    `json:"editCount,omitempty"`
	Model              string                 `json:"model,omitempty"`
	Seeds              []int                  `json:"seeds,omitempty"`
	Temperature        *float64               `json:"temperature,omitempty"`
}

// Build validates the payload and converts it into a GenerationRequest.
func (p RequestPayload) Build() (GenerationRequest, error) {
	req := GenerationRequest{
		Shots:          make(map[ShotType]ShotOptions, len(p.Shots)),
		PreferredModel: strings.TrimSpace(p.Model),
		Seeds:          append([]int(nil), p.Seeds...),
		Temperature:    p.Temperature,
	}
	for raw, opts := range p.Shots {
		shot, ok := ParseShotType(raw)
		if !ok || shot == ShotEdit {
			return GenerationRequest{}, fmt.Errorf("%w: unknown shot type %q", domain.ErrInvalidRequest, raw)
		}
		if opts.Count < 0 || opts.Count > MaxShotCount {
			return GenerationRequest{}, fmt.Errorf("%w: count for %s must be between 0 and %d", domain.ErrInvalidRequest, shot, MaxShotCount)
		}
		if _, dup := req.Shots[shot]; dup {
			return GenerationRequest{}, fmt.Errorf("%w: shot type %s given twice", domain.ErrInvalidRequest, shot)
		}
		req.Shots[shot] = opts
	}

	for _, ref := range p.ProductImages {
		if ref = strings.TrimSpace(ref); ref != "" {
			req.ProductImages = append(req.ProductImages, ref)
		}
	}
	if len(req.ProductImages) > MaxProductImages {
		return GenerationRequest{}, fmt.Errorf("%w: at most %d product images are accepted", domain.ErrInvalidRequest, MaxProductImages)
	}

	if p.EditCount < 0 || p.EditCount > MaxShotCount {
		return GenerationRequest{}, fmt.Errorf("%w: editCount must be between 0 and %d", domain.ErrInvalidRequest, MaxShotCount)
	}
	if HasEditValues(p.EditSpecifications) {
		req.Edit = &EditPass{
			Specs: append([]EditSpec(nil), p.EditSpecifications...),
			Count: p.EditCount,
		}
	}
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Validate checks the per-shot and total image limits. Requests built in code
// rather than through Build are checked again before planning.
func (r GenerationRequest) Validate() error {
	for shot, opts := range r.Shots {
		if opts.Count < 0 || opts.Count > MaxShotCount {
			return fmt.Errorf("%w: count for %s must be between 0 and %d", domain.ErrInvalidRequest, shot, MaxShotCount)
		}
	}
	if r.Edit != nil && (r.Edit.Count < 0 || r.Edit.Count > MaxShotCount) {
		return fmt.Errorf("%w: editCount must be between 0 and %d", domain.ErrInvalidRequest, MaxShotCount)
	}
	if total := r.TotalImages(); total > MaxTotalImages {
		return fmt.Errorf("%w: %d images requested, at most %d per request", domain.ErrInvalidRequest, total, MaxTotalImages)
	}
	return nil
}

func (r GenerationRequest) clamped() GenerationRequest {
	shots := make(map[ShotType]ShotOptions, len(r.Shots))
	for shot, opts := range r.Shots {
		opts.Count = min(max(opts.Count, 0), MaxShotCount)
		shots[shot] = opts
	}
	r.Shots = shots
	if r.Edit != nil {
		edit := *r.Edit
		edit.Count = min(max(edit.Count, 0), MaxShotCount)
		r.Edit = &edit
	}
	return r
}

// TotalImages is the number of images a fully successful run produces.
func (r GenerationRequest) TotalImages() int {
	total := 0
	for _, opts := range r.Shots {
		total += opts.Count
	}
	if r.Edit != nil {
		total += r.Edit.Count
	}
	return total
}
