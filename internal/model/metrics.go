package model

import "math"

// Metrics summarises binary classification quality.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	LogLoss   float64 `json:"logloss"`
	Support   int     `json:"support"`
}

// Map returns the metrics keyed by name, the form recorded for runs.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1":        m.F1,
		"logloss":   m.LogLoss,
	}
}

// BinaryPredFromProba thresholds probabilities into classes.
func BinaryPredFromProba(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = Classify(p, threshold)
	}
	return out
}

// Accuracy returns the fraction of matching labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// PrecisionRecallF1 computes the positive-class scores for labels 0/1.
// Undefined ratios are 0.
func PrecisionRecallF1(yTrue, yPred []int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return prec, rec, f1
}

// Evaluate scores probabilities against 0/1 labels at threshold.
func Evaluate(yTrue, proba []float64, threshold float64) Metrics {
	truth := make([]int, len(yTrue))
	var ll float64
	for i, y := range yTrue {
		if y == 1 {
			truth[i] = 1
		}
		p := clamp(proba[i], 1e-15, 1-1e-15)
		ll -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	pred := BinaryPredFromProba(proba, threshold)

	m := Metrics{Accuracy: Accuracy(truth, pred), Support: len(yTrue)}
	m.Precision, m.Recall, m.F1 = PrecisionRecallF1(truth, pred)
	if len(yTrue) > 0 {
		m.LogLoss = ll / float64(len(yTrue))
	}
	return m
}
