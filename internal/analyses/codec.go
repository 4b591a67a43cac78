package analyses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HugoCL/mlh-code-check-sub000/internal/github"
	"github.com/HugoCL/mlh-code-check-sub000/internal/llm"
	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
)

const (
	maxPromptFiles     = 40
	maxPromptFileBytes = 24 * 1024
)

// BuildPrompt renders the evaluation request for one rubric item against a
// repository snapshot. The response schema instructions depend on the
// evaluation kind so DecodeResult can validate the reply.
func BuildPrompt(item ItemSpec, snap github.Snapshot) llm.EvalRequest {
	var sys strings.Builder
	sys.WriteString("You are a code reviewer evaluating a repository against a single rubric criterion. ")
	sys.WriteString("Base every judgement only on the repository content provided. ")
	sys.WriteString("Respond with a single JSON object and nothing else.\n\n")
	sys.WriteString("Response schema:\n")
	sys.WriteString(schemaInstructions(item.Kind, item.Config))

	var usr strings.Builder
	fmt.Fprintf(&usr, "Repository: %s/%s (branch %s)\n\n", snap.Owner, snap.Name, snap.Branch)
	fmt.Fprintf(&usr, "Criterion: %s\n", item.Name)
	if item.Description != "" {
		fmt.Fprintf(&usr, "Description: %s\n", item.Description)
	}
	if item.Kind == rubrics.KindRange && item.Config.Guidance != "" {
		fmt.Fprintf(&usr, "Scoring guidance: %s\n", item.Config.Guidance)
	}
	if item.Kind == rubrics.KindOptions && len(item.Config.Options) > 0 {
		fmt.Fprintf(&usr, "Allowed options: %s\n", strings.Join(item.Config.Options, ", "))
	}
	usr.WriteString("\nRepository structure:\n")
	usr.WriteString(snap.StructureSummary)
	usr.WriteString("\n\nRepository files:\n")
	for i, f := range snap.Files {
		if i >= maxPromptFiles {
			fmt.Fprintf(&usr, "\n[%d additional files omitted]\n", len(snap.Files)-i)
			break
		}
		content := f.Content
		if len(content) > maxPromptFileBytes {
			content = content[:maxPromptFileBytes] + "\n[truncated]"
		}
		fmt.Fprintf(&usr, "\n--- %s ---\n%s\n", f.Path, content)
	}

	return llm.EvalRequest{
		SystemPrompt: sys.String(),
		UserPrompt:   usr.String(),
	}
}

func schemaInstructions(kind string, cfg rubrics.ItemConfig) string {
	switch kind {
	case rubrics.KindYesNo:
		s := `{"value": true|false`
		if cfg.RequireJustification {
			s += `, "justification": "<required non-empty explanation>"`
		} else {
			s += `, "justification": "<optional explanation>"`
		}
		return s + "}\n"
	case rubrics.KindRange:
		lo, hi := cfg.RangeBounds()
		return fmt.Sprintf(`{"value": <number between %g and %g>, "rationale": "<why this score>"}`+"\n", lo, hi)
	case rubrics.KindComments:
		return `{"feedback": "<non-empty free-form assessment>"}` + "\n"
	case rubrics.KindCodeExamples:
		s := `{"examples": [{"filePath": "<path from the provided files>", "lineStart": <int>, "lineEnd": <int>, "code": "<excerpt>", "explanation": "<why this example matters>"}]}`
		if cfg.MaxExamples != nil {
			s += fmt.Sprintf("\nReturn at most %d examples.", *cfg.MaxExamples)
		}
		return s + "\n"
	case rubrics.KindOptions:
		s := fmt.Sprintf(`{"selections": ["<one of: %s>"]}`, strings.Join(cfg.Options, " | "))
		if !cfg.AllowMultiple {
			s += "\nSelect exactly one option."
		} else if cfg.MaxSelections != nil {
			s += fmt.Sprintf("\nSelect at most %d options.", *cfg.MaxSelections)
		}
		return s + "\n"
	default:
		return `{"feedback": "<assessment>"}` + "\n"
	}
}

type yesNoResult struct {
	Value         *bool  `json:"value"`
	Justification string `json:"justification,omitempty"`
}

type rangeResult struct {
	Value     *float64 `json:"value"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Rationale string   `json:"rationale,omitempty"`
}

type commentsResult struct {
	Feedback string `json:"feedback"`
}

type codeExample struct {
	FilePath    string `json:"filePath"`
	LineStart   int    `json:"lineStart"`
	LineEnd     int    `json:"lineEnd"`
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
}

type codeExamplesResult struct {
	Examples []codeExample `json:"examples"`
}

type optionsResult struct {
	Selections []string `json:"selections"`
}

// DecodeResult parses and validates an evaluator reply for the given kind,
// returning the normalized payload persisted on the item row. Violations are
// reported as ErrInvalidResult so callers can classify them as schema
// mismatches rather than transient failures.
func DecodeResult(kind string, cfg rubrics.ItemConfig, raw json.RawMessage) (map[string]any, error) {
	switch kind {
	case rubrics.KindYesNo:
		return decodeYesNo(cfg, raw)
	case rubrics.KindRange:
		return decodeRange(cfg, raw)
	case rubrics.KindComments:
		return decodeComments(raw)
	case rubrics.KindCodeExamples:
		return decodeCodeExamples(cfg, raw)
	case rubrics.KindOptions:
		return decodeOptions(cfg, raw)
	default:
		return nil, fmt.Errorf("%w: unknown evaluation kind %q", ErrInvalidResult, kind)
	}
}

func decodeYesNo(cfg rubrics.ItemConfig, raw json.RawMessage) (map[string]any, error) {
	var out yesNoResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if out.Value == nil {
		return nil, fmt.Errorf("%w: missing boolean value", ErrInvalidResult)
	}
	just := strings.TrimSpace(out.Justification)
	if cfg.RequireJustification && just == "" {
		return nil, fmt.Errorf("%w: justification is required", ErrInvalidResult)
	}
	payload := map[string]any{"value": *out.Value}
	if just != "" {
		payload["justification"] = just
	}
	return payload, nil
}

func decodeRange(cfg rubrics.ItemConfig, raw json.RawMessage) (map[string]any, error) {
	var out rangeResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if out.Value == nil {
		return nil, fmt.Errorf("%w: missing numeric value", ErrInvalidResult)
	}
	lo, hi := cfg.RangeBounds()
	if *out.Value < lo || *out.Value > hi {
		return nil, fmt.Errorf("%w: value %g outside [%g, %g]", ErrInvalidResult, *out.Value, lo, hi)
	}
	payload := map[string]any{"value": *out.Value, "min": lo, "max": hi}
	if rationale := strings.TrimSpace(out.Rationale); rationale != "" {
		payload["rationale"] = rationale
	}
	return payload, nil
}

func decodeComments(raw json.RawMessage) (map[string]any, error) {
	var out commentsResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	feedback := strings.TrimSpace(out.Feedback)
	if feedback == "" {
		return nil, fmt.Errorf("%w: feedback must be non-empty", ErrInvalidResult)
	}
	return map[string]any{"feedback": feedback}, nil
}

func decodeCodeExamples(cfg rubrics.ItemConfig, raw json.RawMessage) (map[string]any, error) {
	var out codeExamplesResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	examples := out.Examples
	if cfg.MaxExamples != nil && len(examples) > *cfg.MaxExamples {
		return nil, fmt.Errorf("%w: %d examples exceeds cap of %d", ErrInvalidResult, len(examples), *cfg.MaxExamples)
	}
	normalized := make([]any, 0, len(examples))
	for i, ex := range examples {
		if strings.TrimSpace(ex.FilePath) == "" {
			return nil, fmt.Errorf("%w: example %d missing filePath", ErrInvalidResult, i)
		}
		if ex.LineStart < 1 || ex.LineEnd < ex.LineStart {
			return nil, fmt.Errorf("%w: example %d has invalid line range %d-%d", ErrInvalidResult, i, ex.LineStart, ex.LineEnd)
		}
		if strings.TrimSpace(ex.Code) == "" {
			return nil, fmt.Errorf("%w: example %d missing code excerpt", ErrInvalidResult, i)
		}
		entry := map[string]any{
			"filePath":  strings.TrimSpace(ex.FilePath),
			"lineStart": ex.LineStart,
			"lineEnd":   ex.LineEnd,
			"code":      ex.Code,
		}
		if expl := strings.TrimSpace(ex.Explanation); expl != "" {
			entry["explanation"] = expl
		}
		normalized = append(normalized, entry)
	}
	return map[string]any{"examples": normalized}, nil
}

func decodeOptions(cfg rubrics.ItemConfig, raw json.RawMessage) (map[string]any, error) {
	var out optionsResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if len(out.Selections) == 0 {
		return nil, fmt.Errorf("%w: at least one selection is required", ErrInvalidResult)
	}
	if !cfg.AllowMultiple && len(out.Selections) > 1 {
		return nil, fmt.Errorf("%w: multiple selections not allowed", ErrInvalidResult)
	}
	if cfg.AllowMultiple && cfg.MaxSelections != nil && len(out.Selections) > *cfg.MaxSelections {
		return nil, fmt.Errorf("%w: at most %d selections allowed", ErrInvalidResult, *cfg.MaxSelections)
	}

	allowed := make(map[string]string, len(cfg.Options))
	for _, opt := range cfg.Options {
		allowed[strings.ToLower(strings.TrimSpace(opt))] = opt
	}
	seen := make(map[string]bool, len(out.Selections))
	normalized := make([]string, 0, len(out.Selections))
	for _, sel := range out.Selections {
		key := strings.ToLower(strings.TrimSpace(sel))
		canonical, ok := allowed[key]
		if !ok {
			return nil, fmt.Errorf("%w: selection %q is not an allowed option", ErrInvalidResult, sel)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, canonical)
	}
	return map[string]any{"selections": normalized}, nil
}
