package conversation

// Estimator approximates the token cost of a piece of text.
type Estimator interface {
	Estimate(text string) int
}

type EstimatorFunc func(text string) int

func (f EstimatorFunc) Estimate(text string) int {
	return f(text)
}

// CharEstimator charges one token per four bytes, rounded up.
//
// Against BPE tokenizers it is typically within 25% for English prose and
// under-counts dense code and non-Latin scripts, so budgets should keep a
// response reserve rather than run to the limit.
type CharEstimator struct{}

func (CharEstimator) Estimate(text string) int {
	return (len(text) + 3) / 4
}
