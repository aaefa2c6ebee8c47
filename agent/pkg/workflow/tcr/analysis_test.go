package tcr

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiversity(t *testing.T) {
	t.Parallel()

	t.Run("uniform repertoire", func(t *testing.T) {
		t.Parallel()

		m := ComputeDiversity([]float64{0.25, 0.25, 0.25, 0.25})

		assert.Equal(t, 4, m.Clonotypes)
		assert.InDelta(t, math.Log(4), m.Shannon, 1e-9)
		assert.InDelta(t, 0.25, m.Simpson, 1e-9)
		assert.InDelta(t, 4.0, m.InverseSimpson, 1e-9)
		assert.InDelta(t, 1.0, m.Evenness, 1e-9)
		assert.InDelta(t, 0.0, m.Clonality, 1e-9)
	})

	t.Run("counts are normalized", func(t *testing.T) {
		t.Parallel()

		m := ComputeDiversity([]float64{50, 30, 20})

		expected := -(0.5*math.Log(0.5) + 0.3*math.Log(0.3) + 0.2*math.Log(0.2))
		assert.InDelta(t, expected, m.Shannon, 1e-9)
		assert.InDelta(t, 0.25+0.09+0.04, m.Simpson, 1e-9)
	})

	t.Run("monoclonal repertoire", func(t *testing.T) {
		t.Parallel()

		m := ComputeDiversity([]float64{100})

		assert.InDelta(t, 0.0, m.Shannon, 1e-9)
		assert.InDelta(t, 1.0, m.Simpson, 1e-9)
		assert.Equal(t, 0.0, m.Clonality)
	})

	t.Run("zero frequencies are ignored", func(t *testing.T) {
		t.Parallel()

		with := ComputeDiversity([]float64{0.5, 0.5, 0})
		without := ComputeDiversity([]float64{0.5, 0.5})
		assert.InDelta(t, without.Shannon, with.Shannon, 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		m := ComputeDiversity(nil)
		assert.Equal(t, 0, m.Clonotypes)
		assert.Equal(t, 0.0, m.Shannon)
	})
}

func TestCleanSequences(t *testing.T) {
	t.Parallel()

	clean := CleanSequences([]string{"cassirssyeqyf", "CASS-LG*QG", "123", "xXz"})
	assert.Equal(t, []string{"CASSIRSSYEQYF", "CASSLGQG"}, clean)
}

func TestParseSequenceList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"CASSF", "CASSG"}, ParseSequenceList("CASSF, CASSG"))
	assert.Equal(t, []string{"CASSF", "CASSG"}, ParseSequenceList("CASSF\n\nCASSG\n"))
	assert.Empty(t, ParseSequenceList("  \n "))
}

func TestCountMotifs(t *testing.T) {
	t.Parallel()

	motifs := countMotifs([]string{"CASSF", "CASSG"}, 3)

	// CAS and ASS appear in both sequences; order among ties is alphabetical.
	require.GreaterOrEqual(t, len(motifs), 2)
	assert.Equal(t, motifCount{Motif: "ASS", Count: 2}, motifs[0])
	assert.Equal(t, motifCount{Motif: "CAS", Count: 2}, motifs[1])
}

func TestAnalyzeMotifs(t *testing.T) {
	t.Parallel()

	out := AnalyzeMotifs([]string{"CASSIRSSYEQYF", "CASSLGQGNTEAFF", "CASSPGTGGNEQFF"})

	assert.Contains(t, out, "CDR3 Motif Analysis Results (3 sequences):")
	assert.Contains(t, out, "Length Statistics:")
	assert.Contains(t, out, "Top Amino Acid Usage:")
	assert.Contains(t, out, "Most Common 3-mer Motifs:")
	assert.Contains(t, out, "CAS")
	// 4-mer section only appears with more than 10 sequences.
	assert.NotContains(t, out, "4-mer Motifs:")

	assert.Contains(t, AnalyzeMotifs([]string{"123"}), "No valid CDR3 sequences")
}

func TestCompareRepertoires(t *testing.T) {
	t.Parallel()

	rep1 := map[string]float64{"A": 0.5, "B": 0.3, "C": 0.2}
	rep2 := map[string]float64{"B": 0.6, "C": 0.2, "D": 0.2}

	out := CompareRepertoires(rep1, rep2, "Responders", "Non-responders")

	assert.Contains(t, out, "TCR Repertoire Comparison: Responders vs Non-responders")
	assert.Contains(t, out, "- Responders: 3 unique clonotypes")
	assert.Contains(t, out, "- Total unique across both: 4")
	assert.Contains(t, out, "Shared clonotypes: 2 (50.0% of total)")
	assert.Contains(t, out, "High repertoire similarity")

	assert.Contains(t, CompareRepertoires(nil, rep2, "", ""), "Error")
}

func TestTools(t *testing.T) {
	t.Parallel()

	tools := Tools()
	require.Len(t, tools, 3)

	ctx := context.Background()

	t.Run("diversity tool", func(t *testing.T) {
		t.Parallel()

		out, err := tools[0].Handler(ctx, map[string]any{
			"frequencies": []any{float64(50), float64(30), float64(20)},
		})
		require.NoError(t, err)
		assert.Contains(t, out, "Total Clonotypes: 3")

		_, err = tools[0].Handler(ctx, map[string]any{"frequencies": []any{}})
		require.Error(t, err)
	})

	t.Run("motif tool", func(t *testing.T) {
		t.Parallel()

		out, err := tools[1].Handler(ctx, map[string]any{
			"sequences": "CASSIRSSYEQYF, CASSLGQGNTEAFF",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "2 sequences")

		_, err = tools[1].Handler(ctx, map[string]any{"sequences": ""})
		require.Error(t, err)
	})

	t.Run("comparison tool", func(t *testing.T) {
		t.Parallel()

		out, err := tools[2].Handler(ctx, map[string]any{
			"repertoire1": map[string]any{"A": float64(1), "B": float64(2)},
			"repertoire2": map[string]any{"B": float64(3)},
			"group1_name": "Baseline",
			"group2_name": "Week 12",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "Baseline vs Week 12")

		_, err = tools[2].Handler(ctx, map[string]any{
			"repertoire1": map[string]any{"A": "not a number"},
			"repertoire2": map[string]any{"B": float64(1)},
		})
		require.Error(t, err)
	})
}
