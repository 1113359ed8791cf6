// Package ml holds the numeric building blocks of the price models: regression
// trees, gradient boosting and random forest ensembles, the robust scaler,
// stratified splitting and evaluation metrics.
package ml

import (
	"math/rand"
	"sort"
)

// Node is one node of a flattened regression tree
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	IsLeaf    bool
}

// Tree is a binary regression tree stored as a flat node slice rooted at index 0
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for a single row
func (t Tree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for !t.Nodes[i].IsLeaf {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// Leaves returns the number of leaf nodes
func (t Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf {
			count++
		}
	}
	return count
}

// TreeParams controls how a single tree is grown.
// MaxLeaves > 1 switches from depth-wise to leaf-wise (best-first) growth.
type TreeParams struct {
	MaxDepth       int     // 0 means unlimited
	MaxLeaves      int     // leaf-wise growth budget
	MinSamplesLeaf int     // minimum rows per leaf
	Lambda         float64 // L2 penalty on leaf values
	MinGain        float64 // minimum gain required to split
	MaxFeatures    float64 // fraction of features tried per split; 0 or >=1 means all
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	features []int
	params   TreeParams
	rng      *rand.Rand
	nodes    []Node
}

// growTree fits a regression tree to y over the given rows and candidate features
func growTree(x [][]float64, y []float64, rows, features []int, p TreeParams, rng *rand.Rand) Tree {
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	b := &treeBuilder{
		x:        x,
		y:        y,
		features: features,
		params:   p,
		rng:      rng,
	}
	if p.MaxLeaves > 1 {
		b.growLeafWise(rows)
	} else {
		b.growDepthWise(rows, 0)
	}
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) leafValue(rows []int) float64 {
	var sum float64
	for _, r := range rows {
		sum += b.y[r]
	}
	denom := float64(len(rows)) + b.params.Lambda
	if denom == 0 {
		return 0
	}
	return sum / denom
}

func (b *treeBuilder) addLeaf(rows []int) int {
	b.nodes = append(b.nodes, Node{IsLeaf: true, Value: b.leafValue(rows)})
	return len(b.nodes) - 1
}

func (b *treeBuilder) growDepthWise(rows []int, depth int) int {
	idx := b.addLeaf(rows)
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return idx
	}
	s, ok := b.bestSplit(rows)
	if !ok {
		return idx
	}
	left := b.growDepthWise(s.left, depth+1)
	right := b.growDepthWise(s.right, depth+1)
	b.nodes[idx] = Node{
		Feature:   s.feature,
		Threshold: s.threshold,
		Left:      left,
		Right:     right,
		Value:     b.nodes[idx].Value,
	}
	return idx
}

type leafCandidate struct {
	node  int
	depth int
	split split
	ok    bool
}

func (b *treeBuilder) candidate(node int, rows []int, depth int) leafCandidate {
	c := leafCandidate{node: node, depth: depth}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return c
	}
	c.split, c.ok = b.bestSplit(rows)
	return c
}

func (b *treeBuilder) growLeafWise(rows []int) {
	root := b.addLeaf(rows)
	open := []leafCandidate{b.candidate(root, rows, 0)}
	leaves := 1

	for leaves < b.params.MaxLeaves {
		best := -1
		for i, c := range open {
			if c.ok && (best < 0 || c.split.gain > open[best].split.gain) {
				best = i
			}
		}
		if best < 0 {
			return
		}
		c := open[best]
		open = append(open[:best], open[best+1:]...)

		left := b.addLeaf(c.split.left)
		right := b.addLeaf(c.split.right)
		n := &b.nodes[c.node]
		n.IsLeaf = false
		n.Feature = c.split.feature
		n.Threshold = c.split.threshold
		n.Left = left
		n.Right = right
		leaves++

		open = append(open,
			b.candidate(left, c.split.left, c.depth+1),
			b.candidate(right, c.split.right, c.depth+1),
		)
	}
}

// splitFeatures returns the features tried at one node
func (b *treeBuilder) splitFeatures() []int {
	frac := b.params.MaxFeatures
	if frac <= 0 || frac >= 1 || len(b.features) <= 1 {
		return b.features
	}
	k := int(frac*float64(len(b.features)) + 0.5)
	if k < 1 {
		k = 1
	}
	perm := b.rng.Perm(len(b.features))
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = b.features[perm[i]]
	}
	sort.Ints(out)
	return out
}

// bestSplit scans every candidate feature for the threshold with the largest
// regularized gain: GL²/(nL+λ) + GR²/(nR+λ) - G²/(n+λ).
func (b *treeBuilder) bestSplit(rows []int) (split, bool) {
	n := len(rows)
	minLeaf := b.params.MinSamplesLeaf
	if n < 2*minLeaf {
		return split{}, false
	}

	lambda := b.params.Lambda
	var total float64
	for _, r := range rows {
		total += b.y[r]
	}
	parent := total * total / (float64(n) + lambda)

	best := split{gain: b.params.MinGain}
	found := false
	sorted := make([]int, n)

	for _, f := range b.splitFeatures() {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		var leftSum float64
		for i := 0; i < n-1; i++ {
			leftSum += b.y[sorted[i]]
			nl := i + 1
			nr := n - nl
			if nr < minLeaf {
				break
			}
			if nl < minLeaf {
				continue
			}
			v, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if v == next {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/(float64(nl)+lambda) + rightSum*rightSum/(float64(nr)+lambda) - parent
			if gain > best.gain {
				best = split{feature: f, threshold: v + (next-v)/2, gain: gain}
				found = true
			}
		}
	}
	if !found {
		return split{}, false
	}

	for _, r := range rows {
		if b.x[r][best.feature] <= best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	if len(best.left) == 0 || len(best.right) == 0 {
		return split{}, false
	}
	return best, true
}
