// Package tree implements a CART regression tree.
package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/jayakrishnap100/california-housing-mlops/core/model"
	"github.com/jayakrishnap100/california-housing-mlops/core/parallel"
	"github.com/jayakrishnap100/california-housing-mlops/metrics"
	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

// leafFeature marks a leaf in Node.Feature.
const leafFeature = -1

// predictParallelThreshold is the row count above which Predict fans out.
const predictParallelThreshold = 2048

// Node is one node of a fitted tree. Children are indexes into
// DecisionTreeRegressor.Nodes; leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64 // mean target of the samples reaching the node
	NSamples  int
	Impurity  float64 // variance of the target at the node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature == leafFeature
}

// DecisionTreeRegressor is a CART tree using the squared error criterion.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	// Hyperparameters
	MaxDepth        int   // <= 0 grows until leaves are pure or too small
	MinSamplesSplit int   // minimum samples required to split a node
	MinSamplesLeaf  int   // minimum samples required in each child
	MaxFeatures     int   // features examined per split, <= 0 means all
	RandomState     int64 // seed for feature sampling

	// Fitted state
	Nodes       []Node
	Importances []float64
	Depth       int
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MinSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features examined per split.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.MaxFeatures = n
	}
}

// WithRandomState sets the seed used for feature sampling.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) {
		t.RandomState = seed
	}
}

// NewDecisionTreeRegressor creates an unfitted tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		RandomState:     0,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validateParams() error {
	if t.MinSamplesSplit < 2 {
		return scigoErrors.NewValidationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return scigoErrors.NewValidationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	}
	return nil
}

// Fit grows the tree on (X, y), discarding any previous fit.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "DecisionTreeRegressor.Fit")

	samples, err := NewSamples("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	indices := make([]int, samples.Rows())
	for i := range indices {
		indices[i] = i
	}
	return t.FitIndices(samples, indices)
}

// FitIndices grows the tree on the rows of samples listed in indices.
// Repeated indices weigh a sample more, which is how bootstrap samples are fitted.
// indices is reordered in place.
func (t *DecisionTreeRegressor) FitIndices(samples *Samples, indices []int) error {
	t.Reset()
	t.Nodes = nil
	t.Importances = nil
	t.Depth = 0

	if err := t.validateParams(); err != nil {
		return err
	}
	if len(indices) == 0 {
		return scigoErrors.NewValueError("DecisionTreeRegressor.Fit", "no samples to fit")
	}

	b := &builder{
		tree:        t,
		samples:     samples,
		rng:         rand.New(rand.NewSource(t.RandomState)),
		importances: make([]float64, samples.Features()),
		order:       make([]int, len(indices)),
	}
	b.build(indices, 0)

	var total float64
	for _, v := range b.importances {
		total += v
	}
	for i := range b.importances {
		b.importances[i] = scigoErrors.SafeDivide(b.importances[i], total)
	}
	t.Importances = b.importances
	t.SetFitted(samples.Features())

	log.GetLoggerWithName("tree").Debug("DecisionTreeRegressor fitted",
		log.ModelNameKey, "DecisionTreeRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(indices),
		"nodes", len(t.Nodes),
		"depth", t.Depth,
	)
	return nil
}

// PredictRow walks the tree for a single sample.
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	node := &t.Nodes[0]
	for !node.IsLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node.Value
}

// Predict returns one prediction per row of X as a rows x 1 matrix.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !t.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != t.NFeatures {
		return nil, scigoErrors.NewDimensionError("Predict", t.NFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			out.Set(i, 0, t.PredictRow(x))
		}
	})
	return out, nil
}

// Score returns R^2 of the predictions on X against y.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the normalised total impurity decrease per feature.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if !t.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("DecisionTreeRegressor", "FeatureImportances")
	}
	out := make([]float64, len(t.Importances))
	copy(out, t.Importances)
	return out, nil
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      t.RandomState,
	}
}

// builder holds the scratch state of one Fit.
type builder struct {
	tree        *DecisionTreeRegressor
	samples     *Samples
	rng         *rand.Rand
	importances []float64
	order       []int
}

type split struct {
	feature   int
	threshold float64
	gain      float64 // decrease of the sum of squared errors
}

func (b *builder) build(idx []int, depth int) int {
	t := b.tree
	n := len(idx)

	var sum, sumSq float64
	for _, i := range idx {
		v := b.samples.Y[i]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	impurity := math.Max(sumSq/float64(n)-mean*mean, 0)

	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature:  leafFeature,
		Left:     -1,
		Right:    -1,
		Value:    mean,
		NSamples: n,
		Impurity: impurity,
	})
	if depth > t.Depth {
		t.Depth = depth
	}

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		n < t.MinSamplesSplit ||
		n < 2*t.MinSamplesLeaf ||
		impurity <= 1e-12 {
		return id
	}

	best, ok := b.bestSplit(idx, sum, sumSq)
	if !ok {
		return id
	}

	col := b.samples.Columns[best.feature]
	k := partition(idx, func(i int) bool { return col[i] <= best.threshold })
	b.importances[best.feature] += best.gain

	left := b.build(idx[:k], depth+1)
	right := b.build(idx[k:], depth+1)

	node := &t.Nodes[id]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = left
	node.Right = right
	return id
}

func (b *builder) candidateFeatures() []int {
	nf := b.samples.Features()
	k := b.tree.MaxFeatures
	if k <= 0 || k >= nf {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(nf)[:k]
}

func (b *builder) bestSplit(idx []int, sum, sumSq float64) (split, bool) {
	n := len(idx)
	minLeaf := b.tree.MinSamplesLeaf
	parentSSE := sumSq - sum*sum/float64(n)

	best := split{feature: -1}
	order := b.order[:n]

	for _, f := range b.candidateFeatures() {
		col := b.samples.Columns[f]
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })

		if col[order[0]] == col[order[n-1]] {
			continue
		}

		var leftSum, leftSumSq float64
		for i := 0; i < n-1; i++ {
			v := b.samples.Y[order[i]]
			leftSum += v
			leftSumSq += v * v

			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf {
				continue
			}
			if nRight < minLeaf {
				break
			}
			lo, hi := col[order[i]], col[order[i+1]]
			if lo == hi {
				continue
			}

			rightSum := sum - leftSum
			rightSumSq := sumSq - leftSumSq
			childSSE := (leftSumSq - leftSum*leftSum/float64(nLeft)) +
				(rightSumSq - rightSum*rightSum/float64(nRight))
			gain := parentSSE - childSSE

			if gain > best.gain+1e-12 {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, gain: gain}
			}
		}
	}
	return best, best.feature >= 0
}

// partition reorders idx so that the entries satisfying left come first and
// returns their count. Relative order is preserved on both sides.
func partition(idx []int, left func(int) bool) int {
	tmp := make([]int, 0, len(idx))
	k := 0
	for _, i := range idx {
		if left(i) {
			idx[k] = i
			k++
		} else {
			tmp = append(tmp, i)
		}
	}
	copy(idx[k:], tmp)
	return k
}
