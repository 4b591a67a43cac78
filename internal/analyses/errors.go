package analyses

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrResultSealed      = errors.New("result already terminal")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyRubric       = errors.New("rubric has no items")
	ErrInvalidResult     = errors.New("invalid evaluator result")
)

const (
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)
