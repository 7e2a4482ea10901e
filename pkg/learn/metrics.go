package learn

import (
	"fmt"
	"strings"
)

func Accuracy(yTrue, yPred []string) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// PRF is precision, recall and F1 for one label, plus its support.
type PRF struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Score computes PRF treating label as the positive class. Undefined
// ratios are reported as 0.
func Score(yTrue, yPred []string, label string) PRF {
	var tp, fp, fn int
	for i := range yTrue {
		switch {
		case yPred[i] == label && yTrue[i] == label:
			tp++
		case yPred[i] == label:
			fp++
		case yTrue[i] == label:
			fn++
		}
	}
	var out PRF
	out.Support = tp + fn
	if tp+fp > 0 {
		out.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		out.Recall = float64(tp) / float64(tp+fn)
	}
	if out.Precision+out.Recall > 0 {
		out.F1 = 2 * out.Precision * out.Recall / (out.Precision + out.Recall)
	}
	return out
}

// ConfusionMatrix rows are true labels, columns predicted, both ordered as labels.
func ConfusionMatrix(yTrue, yPred []string, labels []string) [][]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	m := make([][]int, len(labels))
	for i := range m {
		m[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		t, ok1 := idx[yTrue[i]]
		p, ok2 := idx[yPred[i]]
		if ok1 && ok2 {
			m[t][p]++
		}
	}
	return m
}

// ClassificationReport renders per-label and averaged scores as text.
func ClassificationReport(yTrue, yPred []string, labels []string) string {
	width := len("weighted avg")
	for _, l := range labels {
		width = max(width, len(l))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")

	var macro, weighted PRF
	total := 0
	for _, l := range labels {
		s := Score(yTrue, yPred, l)
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, l, s.Precision, s.Recall, s.F1, s.Support)
		macro.Precision += s.Precision / float64(len(labels))
		macro.Recall += s.Recall / float64(len(labels))
		macro.F1 += s.F1 / float64(len(labels))
		weighted.Precision += s.Precision * float64(s.Support)
		weighted.Recall += s.Recall * float64(s.Support)
		weighted.F1 += s.F1 * float64(s.Support)
		total += s.Support
	}
	if total > 0 {
		weighted.Precision /= float64(total)
		weighted.Recall /= float64(total)
		weighted.F1 /= float64(total)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", Accuracy(yTrue, yPred), total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "macro avg", macro.Precision, macro.Recall, macro.F1, total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", weighted.Precision, weighted.Recall, weighted.F1, total)
	return b.String()
}
