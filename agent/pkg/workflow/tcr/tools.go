package tcr

import (
	"context"
	"fmt"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// Tools returns the TCR analysis tool set handed to the agent. All three are
// pure: they compute over the arguments and touch no I/O.
func Tools() []workflow.Tool {
	return []workflow.Tool{
		diversityTool(),
		motifTool(),
		comparisonTool(),
	}
}

func diversityTool() workflow.Tool {
	return workflow.Tool{
		Name: "calculate_diversity_metrics",
		Description: "Calculate TCR repertoire diversity metrics (Shannon, Simpson, inverse Simpson, " +
			"evenness, clonality) from clonotype counts or frequencies.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"frequencies": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "number"},
					"description": "Per-clonotype read counts or relative frequencies.",
				},
			},
			"required": []string{"frequencies"},
		},
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			raw, ok := params["frequencies"].([]any)
			if !ok || len(raw) == 0 {
				return "", fmt.Errorf("frequencies must be a non-empty array of numbers")
			}
			frequencies := make([]float64, 0, len(raw))
			for _, v := range raw {
				f, ok := v.(float64)
				if !ok {
					return "", fmt.Errorf("frequencies must be numbers, got %T", v)
				}
				frequencies = append(frequencies, f)
			}
			return FormatDiversityReport(ComputeDiversity(frequencies)), nil
		},
	}
}

func motifTool() workflow.Tool {
	return workflow.Tool{
		Name: "analyze_cdr3_motifs",
		Description: "Analyze CDR3 amino acid sequences: length statistics, amino acid usage, " +
			"and the most common 3-mer and 4-mer motifs.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sequences": map[string]any{
					"type":        "string",
					"description": "CDR3 sequences, comma- or newline-separated.",
				},
			},
			"required": []string{"sequences"},
		},
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			input, _ := params["sequences"].(string)
			sequences := ParseSequenceList(input)
			if len(sequences) == 0 {
				return "", fmt.Errorf("no CDR3 sequences found in input")
			}
			return AnalyzeMotifs(sequences), nil
		},
	}
}

func comparisonTool() workflow.Tool {
	return workflow.Tool{
		Name: "compare_repertoires",
		Description: "Compare two TCR repertoires: clonotype overlap, per-group diversity, " +
			"and a biological interpretation of the differences.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"repertoire1": map[string]any{
					"type":        "object",
					"description": "First repertoire: clonotype id to count or frequency.",
					"additionalProperties": map[string]any{
						"type": "number",
					},
				},
				"repertoire2": map[string]any{
					"type":        "object",
					"description": "Second repertoire: clonotype id to count or frequency.",
					"additionalProperties": map[string]any{
						"type": "number",
					},
				},
				"group1_name": map[string]any{
					"type":        "string",
					"description": "Label for the first group, e.g. Responders.",
				},
				"group2_name": map[string]any{
					"type":        "string",
					"description": "Label for the second group, e.g. Non-responders.",
				},
			},
			"required": []string{"repertoire1", "repertoire2"},
		},
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			rep1, err := decodeRepertoire(params["repertoire1"])
			if err != nil {
				return "", fmt.Errorf("repertoire1: %w", err)
			}
			rep2, err := decodeRepertoire(params["repertoire2"])
			if err != nil {
				return "", fmt.Errorf("repertoire2: %w", err)
			}
			name1, _ := params["group1_name"].(string)
			name2, _ := params["group2_name"].(string)
			return CompareRepertoires(rep1, rep2, name1, name2), nil
		},
	}
}

func decodeRepertoire(v any) (map[string]float64, error) {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("expected a non-empty object of clonotype frequencies")
	}
	rep := make(map[string]float64, len(raw))
	for clonotype, val := range raw {
		f, ok := val.(float64)
		if !ok {
			return nil, fmt.Errorf("frequency for %q must be a number, got %T", clonotype, val)
		}
		rep[clonotype] = f
	}
	return rep, nil
}
