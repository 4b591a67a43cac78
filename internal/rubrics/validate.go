package rubrics

import (
	"fmt"
	"strings"
)

// ValidateRubric checks authoring-time rules for a rubric and its items.
func ValidateRubric(r Rubric) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: rubric name is required", ErrValidation)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: rubric requires at least one item", ErrValidation)
	}
	for i, item := range r.Items {
		if err := ValidateItem(item); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, item.Name, err)
		}
	}
	return nil
}

// ValidateItem checks a single item's kind and kind-specific config.
func ValidateItem(item Item) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: item name is required", ErrValidation)
	}

	switch item.EvaluationKind {
	case KindYesNo, KindComments:
		return nil
	case KindRange:
		if strings.TrimSpace(item.Config.Guidance) == "" {
			return fmt.Errorf("%w: range items require scoring guidance", ErrValidation)
		}
		min, max := item.Config.RangeBounds()
		if min >= max {
			return fmt.Errorf("%w: range min %v must be below max %v", ErrValidation, min, max)
		}
		return nil
	case KindCodeExamples:
		if item.Config.MaxExamples != nil && *item.Config.MaxExamples < 1 {
			return fmt.Errorf("%w: maxExamples must be positive", ErrValidation)
		}
		return nil
	case KindOptions:
		return validateOptionsConfig(item.Config)
	default:
		return fmt.Errorf("%w: unknown evaluation kind %q", ErrValidation, item.EvaluationKind)
	}
}

func validateOptionsConfig(cfg ItemConfig) error {
	if len(cfg.Options) == 0 {
		return fmt.Errorf("%w: options items require at least one option", ErrValidation)
	}
	seen := make(map[string]struct{}, len(cfg.Options))
	for _, opt := range cfg.Options {
		trimmed := strings.TrimSpace(opt)
		if trimmed == "" {
			return fmt.Errorf("%w: empty option", ErrValidation)
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrValidation, trimmed)
		}
		seen[key] = struct{}{}
	}
	if cfg.MaxSelections != nil {
		if *cfg.MaxSelections < 1 || *cfg.MaxSelections > len(cfg.Options) {
			return fmt.Errorf("%w: maxSelections out of bounds", ErrValidation)
		}
		if !cfg.AllowMultiple && *cfg.MaxSelections != 1 {
			return fmt.Errorf("%w: maxSelections must be 1 when allowMultiple is false", ErrValidation)
		}
	}
	return nil
}
