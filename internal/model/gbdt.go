package model

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Config holds the boosting hyperparameters.
type Config struct {
	Estimators     int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinChildWeight float64 `json:"min_child_weight"`
	Lambda         float64 `json:"reg_lambda"`
	Subsample      float64 `json:"subsample"`
	Seed           int64   `json:"random_state"`
}

// DefaultConfig returns the hyperparameters used for churn training.
func DefaultConfig() Config {
	return Config{
		Estimators:     300,
		LearningRate:   0.1,
		MaxDepth:       6,
		MinChildWeight: 1,
		Lambda:         1,
		Subsample:      1,
		Seed:           42,
	}
}

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	switch {
	case c.Estimators <= 0:
		return fmt.Errorf("n_estimators must be positive, got %d", c.Estimators)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	case c.MaxDepth <= 0:
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	case c.MinChildWeight < 0:
		return fmt.Errorf("min_child_weight must not be negative, got %g", c.MinChildWeight)
	case c.Lambda < 0:
		return fmt.Errorf("reg_lambda must not be negative, got %g", c.Lambda)
	case c.Subsample <= 0 || c.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %g", c.Subsample)
	}
	return nil
}

// Option configures a GBDT.
type Option func(*GBDT)

func WithEstimators(n int) Option           { return func(m *GBDT) { m.Config.Estimators = n } }
func WithLearningRate(r float64) Option     { return func(m *GBDT) { m.Config.LearningRate = r } }
func WithMaxDepth(d int) Option             { return func(m *GBDT) { m.Config.MaxDepth = d } }
func WithMinChildWeight(w float64) Option   { return func(m *GBDT) { m.Config.MinChildWeight = w } }
func WithLambda(l float64) Option           { return func(m *GBDT) { m.Config.Lambda = l } }
func WithSubsample(s float64) Option        { return func(m *GBDT) { m.Config.Subsample = s } }
func WithSeed(seed int64) Option            { return func(m *GBDT) { m.Config.Seed = seed } }
func WithConfig(c Config) Option            { return func(m *GBDT) { m.Config = c } }
func WithLogger(logger *slog.Logger) Option { return func(m *GBDT) { m.logger = logger } }

// GBDT is a gradient-boosted tree ensemble for binary classification.
// Each tree is grown level by level with second-order gain
//
//	GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ)
//
// and leaf weight -G/(H+λ) scaled by the learning rate.
type GBDT struct {
	Config    Config
	BaseScore float64
	Features  int
	Trees     []Tree

	logger *slog.Logger
}

// NewGBDT creates an untrained model with DefaultConfig.
func NewGBDT(opts ...Option) *GBDT {
	m := &GBDT{
		Config: DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Node is one tree node. Samples with x[Feature] < Threshold go Left.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// Tree is a flattened regression tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Eval returns the leaf value reached by x. Features beyond len(x) read as 0.
func (t Tree) Eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		var v float64
		if n.Feature < len(x) {
			v = x[n.Feature]
		}
		if v < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Fitted reports whether the model holds a trained ensemble.
func (m *GBDT) Fitted() bool { return m.Features > 0 }

// NumFeatures returns the feature count seen by Fit.
func (m *GBDT) NumFeatures() int { return m.Features }

// Fit trains on X (n x p) and labels y in {0,1}.
func (m *GBDT) Fit(X mat.Matrix, y []float64) error {
	if err := m.Config.Validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.New("gbdt: empty training matrix")
	}
	if len(y) != n {
		return fmt.Errorf("gbdt: %d rows but %d labels", n, len(y))
	}

	var positives float64
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("gbdt: label %g at row %d is not 0 or 1", label, i)
		}
		positives += label
	}

	cols := make([][]float64, p)
	sorted := make([][]int, p)
	for f := range p {
		cols[f] = make([]float64, n)
		for i := range n {
			cols[f][i] = X.At(i, f)
		}
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		col := cols[f]
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case col[a] < col[b]:
				return -1
			case col[a] > col[b]:
				return 1
			default:
				return 0
			}
		})
		sorted[f] = order
	}

	prior := clamp(positives/float64(n), 1e-6, 1-1e-6)
	m.BaseScore = math.Log(prior / (1 - prior))
	m.Features = p
	m.Trees = make([]Tree, 0, m.Config.Estimators)

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = m.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	rng := rand.New(rand.NewSource(m.Config.Seed))

	for round := range m.Config.Estimators {
		for i := range n {
			pr := sigmoid(margin[i])
			grad[i] = pr - y[i]
			hess[i] = math.Max(pr*(1-pr), 1e-16)
		}

		b := &treeBuilder{
			cfg:    m.Config,
			cols:   cols,
			sorted: sorted,
			grad:   grad,
			hess:   hess,
		}
		tree := b.build(m.sample(rng, n))

		for i := range n {
			margin[i] += tree.evalColumns(cols, i)
		}
		m.Trees = append(m.Trees, tree)

		if (round+1)%50 == 0 || round+1 == m.Config.Estimators {
			m.logger.Debug("boosting round", "round", round+1, "logloss", logLoss(y, margin), "nodes", len(tree.Nodes))
		}
	}
	return nil
}

// sample returns the row membership for one round.
func (m *GBDT) sample(rng *rand.Rand, n int) []bool {
	in := make([]bool, n)
	for i := range in {
		in[i] = m.Config.Subsample >= 1 || rng.Float64() < m.Config.Subsample
	}
	return in
}

// Margin returns the raw log-odds score of x.
func (m *GBDT) Margin(x []float64) float64 {
	s := m.BaseScore
	for _, t := range m.Trees {
		s += t.Eval(x)
	}
	return s
}

// PredictProba returns p(y=1) for x.
func (m *GBDT) PredictProba(x []float64) float64 {
	return sigmoid(m.Margin(x))
}

// Predict returns the class of x at DefaultThreshold.
func (m *GBDT) Predict(x []float64) int {
	return Classify(m.PredictProba(x), DefaultThreshold)
}

// PredictProbaMatrix scores every row of X.
func (m *GBDT) PredictProbaMatrix(X mat.Matrix) []float64 {
	n, _ := X.Dims()
	out := make([]float64, n)
	for i := range n {
		out[i] = m.PredictProba(mat.Row(nil, i, X))
	}
	return out
}

type treeBuilder struct {
	cfg    Config
	cols   [][]float64
	sorted [][]int
	grad   []float64
	hess   []float64
}

type split struct {
	gain      float64
	feature   int
	threshold float64
}

// build grows one tree over the sampled rows, level by level. Candidate
// splits for every open node of a level are found in one pass over each
// presorted feature.
func (b *treeBuilder) build(in []bool) Tree {
	n := len(in)
	pos := make([]int, n)
	for i := range pos {
		if in[i] {
			pos[i] = 0
		} else {
			pos[i] = -1
		}
	}

	nodes := []Node{{}}
	gSum := []float64{0}
	hSum := []float64{0}
	for i := range n {
		if in[i] {
			gSum[0] += b.grad[i]
			hSum[0] += b.hess[i]
		}
	}

	frontier := []int{0}
	for depth := 0; depth < b.cfg.MaxDepth && len(frontier) > 0; depth++ {
		slot := make(map[int]int, len(frontier))
		for k, id := range frontier {
			slot[id] = k
		}
		best := b.findSplits(pos, slot, frontier, gSum, hSum)

		var next []int
		for k, id := range frontier {
			s := best[k]
			if s.gain <= 1e-12 {
				continue
			}
			left, right := len(nodes), len(nodes)+1
			nodes[id].Feature = s.feature
			nodes[id].Threshold = s.threshold
			nodes[id].Left = left
			nodes[id].Right = right
			nodes = append(nodes, Node{}, Node{})
			gSum = append(gSum, 0, 0)
			hSum = append(hSum, 0, 0)
			next = append(next, left, right)
		}

		for i := range n {
			id := pos[i]
			if id < 0 {
				continue
			}
			nd := nodes[id]
			if nd.Left == 0 {
				continue
			}
			if b.cols[nd.Feature][i] < nd.Threshold {
				pos[i] = nd.Left
			} else {
				pos[i] = nd.Right
			}
			gSum[pos[i]] += b.grad[i]
			hSum[pos[i]] += b.hess[i]
		}
		frontier = next
	}

	for id := range nodes {
		if nodes[id].Left != 0 {
			continue
		}
		var w float64
		if d := hSum[id] + b.cfg.Lambda; d > 0 {
			w = -gSum[id] / d * b.cfg.LearningRate
		}
		nodes[id] = Node{Leaf: true, Value: w}
	}
	return Tree{Nodes: nodes}
}

func (b *treeBuilder) findSplits(pos []int, slot map[int]int, frontier []int, gSum, hSum []float64) []split {
	k := len(frontier)
	best := make([]split, k)
	parent := make([]float64, k)
	for j, id := range frontier {
		parent[j] = gSum[id] * gSum[id] / (hSum[id] + b.cfg.Lambda)
	}

	gl := make([]float64, k)
	hl := make([]float64, k)
	last := make([]float64, k)
	seen := make([]bool, k)

	for f, order := range b.sorted {
		clear(gl)
		clear(hl)
		clear(seen)
		col := b.cols[f]
		for _, i := range order {
			id := pos[i]
			if id < 0 {
				continue
			}
			j, ok := slot[id]
			if !ok {
				continue
			}
			v := col[i]
			if seen[j] && v > last[j] {
				g, h := gSum[frontier[j]], hSum[frontier[j]]
				gr, hr := g-gl[j], h-hl[j]
				if hl[j] >= b.cfg.MinChildWeight && hr >= b.cfg.MinChildWeight {
					gain := gl[j]*gl[j]/(hl[j]+b.cfg.Lambda) + gr*gr/(hr+b.cfg.Lambda) - parent[j]
					if gain > best[j].gain {
						best[j] = split{gain: gain, feature: f, threshold: (last[j] + v) / 2}
					}
				}
			}
			gl[j] += b.grad[i]
			hl[j] += b.hess[i]
			last[j] = v
			seen[j] = true
		}
	}
	return best
}

// evalColumns evaluates the tree on training row i held column-wise.
func (t Tree) evalColumns(cols [][]float64, i int) float64 {
	k := 0
	for {
		n := t.Nodes[k]
		if n.Leaf {
			return n.Value
		}
		if cols[n.Feature][i] < n.Threshold {
			k = n.Left
		} else {
			k = n.Right
		}
	}
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

func logLoss(y, margin []float64) float64 {
	var s float64
	for i := range y {
		p := clamp(sigmoid(margin[i]), 1e-15, 1-1e-15)
		s -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
	}
	return s / float64(len(y))
}
