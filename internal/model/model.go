// Package model provides the churn classifier: gradient-boosted decision
// trees for binary logistic loss, plus evaluation metrics and splitting.
package model

// Classifier scores one aligned feature vector.
type Classifier interface {
	// PredictProba returns p(y=1) for x.
	PredictProba(x []float64) float64
	// NumFeatures returns the vector length the classifier was fit on.
	NumFeatures() int
}

// DefaultThreshold separates the positive class from the negative one.
const DefaultThreshold = 0.5

// Classify maps a probability to a class at threshold.
func Classify(p, threshold float64) int {
	if p >= threshold {
		return 1
	}
	return 0
}
