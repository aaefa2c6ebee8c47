// Package tcr is the immune-repertoire variant of the workflow: the same
// orchestration graph parameterized with a domain-static schema, TCR guidance
// appended to the schema text, and pure analysis tools for repertoire
// diversity, CDR3 motifs and repertoire comparison.
package tcr

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// validAminoAcids is the standard 20-letter amino acid alphabet.
const validAminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// DiversityMetrics summarizes the clonal structure of a repertoire.
type DiversityMetrics struct {
	Clonotypes     int
	Shannon        float64
	Simpson        float64
	InverseSimpson float64
	Evenness       float64
	Clonality      float64
}

// ComputeDiversity calculates repertoire diversity from clonotype counts or
// frequencies. Values are normalized to relative frequencies first, so raw
// read counts work as well.
func ComputeDiversity(frequencies []float64) DiversityMetrics {
	m := DiversityMetrics{Clonotypes: len(frequencies)}

	total := 0.0
	for _, f := range frequencies {
		if f > 0 {
			total += f
		}
	}
	if total == 0 {
		return m
	}

	for _, f := range frequencies {
		if f <= 0 {
			continue
		}
		p := f / total
		m.Shannon -= p * math.Log(p)
		m.Simpson += p * p
	}

	if m.Simpson > 0 {
		m.InverseSimpson = 1 / m.Simpson
	} else {
		m.InverseSimpson = math.Inf(1)
	}

	if n := len(frequencies); n > 1 {
		m.Evenness = m.Shannon / math.Log(float64(n))
		m.Clonality = 1 - m.Evenness
	}

	return m
}

// FormatDiversityReport renders the metrics with the interpretation bands
// analysts expect.
func FormatDiversityReport(m DiversityMetrics) string {
	var sb strings.Builder
	sb.WriteString("TCR Repertoire Diversity Metrics:\n\n")
	sb.WriteString(fmt.Sprintf("Total Clonotypes: %d\n", m.Clonotypes))
	sb.WriteString(fmt.Sprintf("Shannon Diversity: %.4f\n", m.Shannon))
	sb.WriteString(fmt.Sprintf("Simpson Index: %.4f\n", m.Simpson))
	sb.WriteString(fmt.Sprintf("Inverse Simpson: %.4f\n", m.InverseSimpson))
	sb.WriteString(fmt.Sprintf("Evenness: %.4f\n", m.Evenness))
	sb.WriteString(fmt.Sprintf("Clonality: %.4f\n\n", m.Clonality))

	sb.WriteString("Interpretation:\n")
	switch {
	case m.Shannon > 4:
		sb.WriteString("- High repertoire diversity (Shannon > 4)\n")
	case m.Shannon > 2:
		sb.WriteString("- Moderate repertoire diversity (Shannon 2-4)\n")
	default:
		sb.WriteString("- Low repertoire diversity (Shannon < 2)\n")
	}
	if m.Clonality > 0.5 {
		sb.WriteString("- High clonal expansion (Clonality > 0.5)\n")
	} else {
		sb.WriteString("- Polyclonal repertoire (Clonality < 0.5)\n")
	}

	return sb.String()
}

// CleanSequences uppercases the input and drops every character outside the
// amino acid alphabet; sequences that clean down to nothing are discarded.
func CleanSequences(sequences []string) []string {
	cleaned := make([]string, 0, len(sequences))
	for _, seq := range sequences {
		var sb strings.Builder
		for _, c := range strings.ToUpper(seq) {
			if strings.ContainsRune(validAminoAcids, c) {
				sb.WriteRune(c)
			}
		}
		if sb.Len() > 0 {
			cleaned = append(cleaned, sb.String())
		}
	}
	return cleaned
}

// ParseSequenceList splits comma- or newline-separated CDR3 input.
func ParseSequenceList(input string) []string {
	var parts []string
	if strings.Contains(input, ",") {
		parts = strings.Split(input, ",")
	} else {
		parts = strings.Split(input, "\n")
	}

	sequences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sequences = append(sequences, p)
		}
	}
	return sequences
}

// motifCount is one k-mer with its occurrence count.
type motifCount struct {
	Motif string
	Count int
}

// countMotifs tallies all k-mers across the sequences, most frequent first.
// Ties break alphabetically so the report is deterministic.
func countMotifs(sequences []string, k int) []motifCount {
	counts := make(map[string]int)
	for _, seq := range sequences {
		for i := 0; i+k <= len(seq); i++ {
			counts[seq[i:i+k]]++
		}
	}

	motifs := make([]motifCount, 0, len(counts))
	for m, c := range counts {
		motifs = append(motifs, motifCount{Motif: m, Count: c})
	}
	sort.Slice(motifs, func(i, j int) bool {
		if motifs[i].Count != motifs[j].Count {
			return motifs[i].Count > motifs[j].Count
		}
		return motifs[i].Motif < motifs[j].Motif
	})
	return motifs
}

// AnalyzeMotifs reports length statistics, amino acid usage, and the most
// common 3-mer and 4-mer motifs of a CDR3 sequence set.
func AnalyzeMotifs(sequences []string) string {
	clean := CleanSequences(sequences)
	if len(clean) == 0 {
		return "No valid CDR3 sequences found after cleaning."
	}

	totalLen := 0
	minLen, maxLen := len(clean[0]), len(clean[0])
	lengthCounts := make(map[int]int)
	aaCounts := make(map[rune]int)
	totalAA := 0
	for _, seq := range clean {
		l := len(seq)
		totalLen += l
		minLen = min(minLen, l)
		maxLen = max(maxLen, l)
		lengthCounts[l]++
		for _, c := range seq {
			aaCounts[c]++
			totalAA++
		}
	}

	modalLen, modalCount := 0, 0
	for l, c := range lengthCounts {
		if c > modalCount || (c == modalCount && l < modalLen) {
			modalLen, modalCount = l, c
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CDR3 Motif Analysis Results (%d sequences):\n\n", len(clean)))

	sb.WriteString("Length Statistics:\n")
	sb.WriteString(fmt.Sprintf("- Average length: %.1f amino acids\n", float64(totalLen)/float64(len(clean))))
	sb.WriteString(fmt.Sprintf("- Length range: %d-%d amino acids\n", minLen, maxLen))
	sb.WriteString(fmt.Sprintf("- Most common length: %d amino acids\n\n", modalLen))

	type aaUsage struct {
		AA    rune
		Count int
	}
	usage := make([]aaUsage, 0, len(aaCounts))
	for aa, c := range aaCounts {
		usage = append(usage, aaUsage{AA: aa, Count: c})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Count != usage[j].Count {
			return usage[i].Count > usage[j].Count
		}
		return usage[i].AA < usage[j].AA
	})

	sb.WriteString("Top Amino Acid Usage:\n")
	for i, u := range usage {
		if i >= 10 {
			break
		}
		sb.WriteString(fmt.Sprintf("- %c: %.1f%% (%d occurrences)\n",
			u.AA, float64(u.Count)/float64(totalAA)*100, u.Count))
	}
	sb.WriteString("\n")

	sb.WriteString("Most Common 3-mer Motifs:\n")
	for i, m := range countMotifs(clean, 3) {
		if i >= 10 {
			break
		}
		sb.WriteString(fmt.Sprintf("- %s: %.1f%% of sequences (%d occurrences)\n",
			m.Motif, float64(m.Count)/float64(len(clean))*100, m.Count))
	}

	if len(clean) > 10 {
		sb.WriteString("\nMost Common 4-mer Motifs:\n")
		for i, m := range countMotifs(clean, 4) {
			if i >= 8 {
				break
			}
			sb.WriteString(fmt.Sprintf("- %s: %.1f%% of sequences (%d occurrences)\n",
				m.Motif, float64(m.Count)/float64(len(clean))*100, m.Count))
		}
	}

	return sb.String()
}

// CompareRepertoires reports clonotype overlap and diversity differences
// between two repertoires keyed by clonotype with frequency values.
func CompareRepertoires(rep1, rep2 map[string]float64, name1, name2 string) string {
	if name1 == "" {
		name1 = "Group 1"
	}
	if name2 == "" {
		name2 = "Group 2"
	}
	if len(rep1) == 0 || len(rep2) == 0 {
		return "Error: Could not parse clonotype data from one or both repertoires."
	}

	shared := 0
	for c := range rep1 {
		if _, ok := rep2[c]; ok {
			shared++
		}
	}
	uniqueTo1 := len(rep1) - shared
	uniqueTo2 := len(rep2) - shared
	totalUnique := len(rep1) + len(rep2) - shared

	div1 := ComputeDiversity(frequencyValues(rep1))
	div2 := ComputeDiversity(frequencyValues(rep2))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TCR Repertoire Comparison: %s vs %s\n\n", name1, name2))

	sb.WriteString("Repertoire Sizes:\n")
	sb.WriteString(fmt.Sprintf("- %s: %d unique clonotypes\n", name1, len(rep1)))
	sb.WriteString(fmt.Sprintf("- %s: %d unique clonotypes\n", name2, len(rep2)))
	sb.WriteString(fmt.Sprintf("- Total unique across both: %d\n\n", totalUnique))

	overlapPercent := float64(shared) / float64(totalUnique) * 100
	sb.WriteString("Clonotype Overlap:\n")
	sb.WriteString(fmt.Sprintf("- Shared clonotypes: %d (%.1f%% of total)\n", shared, overlapPercent))
	sb.WriteString(fmt.Sprintf("- Unique to %s: %d (%.1f%%)\n", name1, uniqueTo1, float64(uniqueTo1)/float64(len(rep1))*100))
	sb.WriteString(fmt.Sprintf("- Unique to %s: %d (%.1f%%)\n\n", name2, uniqueTo2, float64(uniqueTo2)/float64(len(rep2))*100))

	sb.WriteString("Diversity Comparison:\n")
	sb.WriteString(fmt.Sprintf("- %s Shannon Diversity: %.4f\n", name1, div1.Shannon))
	sb.WriteString(fmt.Sprintf("- %s Shannon Diversity: %.4f\n", name2, div2.Shannon))
	sb.WriteString(fmt.Sprintf("- Diversity Difference: %.4f\n\n", math.Abs(div1.Shannon-div2.Shannon)))
	sb.WriteString(fmt.Sprintf("- %s Simpson Index: %.4f\n", name1, div1.Simpson))
	sb.WriteString(fmt.Sprintf("- %s Simpson Index: %.4f\n\n", name2, div2.Simpson))

	sb.WriteString("Biological Interpretation:\n")
	switch {
	case overlapPercent > 30:
		sb.WriteString("- High repertoire similarity (>30% overlap) - may indicate shared immune responses\n")
	case overlapPercent > 10:
		sb.WriteString("- Moderate repertoire similarity (10-30% overlap) - some shared specificities\n")
	default:
		sb.WriteString("- Low repertoire similarity (<10% overlap) - distinct immune signatures\n")
	}
	if math.Abs(div1.Shannon-div2.Shannon) > 1.0 {
		sb.WriteString("- Significant diversity difference - one group shows more clonal expansion\n")
	} else {
		sb.WriteString("- Similar diversity levels between groups\n")
	}

	return sb.String()
}

func frequencyValues(rep map[string]float64) []float64 {
	values := make([]float64, 0, len(rep))
	for _, f := range rep {
		values = append(values, f)
	}
	return values
}
