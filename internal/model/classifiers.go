package model

import (
	"fmt"
	"math"
)

// LogisticParams holds serialized logistic-regression parameters. Mean and
// Scale carry the training-time standardization; when omitted, features are
// used unscaled.
type LogisticParams struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Mean      []float64 `json:"mean,omitempty"`
	Scale     []float64 `json:"scale,omitempty"`
}

// logistic is a standardized logistic-regression classifier.
type logistic struct {
	weights   []float64
	intercept float64
	mean      []float64
	scale     []float64
}

func newLogistic(p *LogisticParams, featureCount int) (*logistic, error) {
	if len(p.Weights) != featureCount {
		return nil, fmt.Errorf("logistic weight count %d does not match feature count %d",
			len(p.Weights), featureCount)
	}
	if len(p.Mean) != 0 && len(p.Mean) != featureCount {
		return nil, fmt.Errorf("logistic scaler mean length %d does not match feature count %d",
			len(p.Mean), featureCount)
	}
	if len(p.Scale) != 0 && len(p.Scale) != featureCount {
		return nil, fmt.Errorf("logistic scaler scale length %d does not match feature count %d",
			len(p.Scale), featureCount)
	}
	return &logistic{
		weights:   p.Weights,
		intercept: p.Intercept,
		mean:      p.Mean,
		scale:     p.Scale,
	}, nil
}

// PredictProba computes sigmoid(intercept + w . x) over the optionally
// standardized feature vector.
func (l *logistic) PredictProba(features []float64) (float64, error) {
	if len(features) != len(l.weights) {
		return 0, fmt.Errorf("feature vector length %d does not match weight count %d",
			len(features), len(l.weights))
	}

	z := l.intercept
	for i, x := range features {
		if len(l.mean) > 0 {
			x -= l.mean[i]
		}
		if len(l.scale) > 0 && l.scale[i] != 0 {
			x /= l.scale[i]
		}
		z += l.weights[i] * x
	}

	return sigmoid(z), nil
}

// TreeNode is one node of a serialized decision tree. Internal nodes route on
// Feature <= Threshold (left) vs > Threshold (right); leaves carry the raw
// margin contribution in Value.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a flattened decision tree; node 0 is the root.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeEnsembleParams holds a serialized gradient-boosted tree ensemble.
type TreeEnsembleParams struct {
	InitScore    float64 `json:"init_score"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// treeEnsemble is a gradient-boosted binary classifier: the sigmoid of the
// summed, learning-rate-scaled leaf values over the initial score.
type treeEnsemble struct {
	initScore    float64
	learningRate float64
	trees        []Tree
	featureCount int
}

func newTreeEnsemble(p *TreeEnsembleParams, featureCount int) (*treeEnsemble, error) {
	if len(p.Trees) == 0 {
		return nil, fmt.Errorf("tree ensemble has no trees")
	}
	lr := p.LearningRate
	if lr == 0 {
		lr = 1
	}
	for ti, tree := range p.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature < 0 || node.Feature >= featureCount {
				return nil, fmt.Errorf("tree %d node %d references feature %d outside schema of %d",
					ti, ni, node.Feature, featureCount)
			}
			if node.Left < 0 || node.Left >= len(tree.Nodes) ||
				node.Right < 0 || node.Right >= len(tree.Nodes) {
				return nil, fmt.Errorf("tree %d node %d has out-of-range child index", ti, ni)
			}
		}
	}
	return &treeEnsemble{
		initScore:    p.InitScore,
		learningRate: lr,
		trees:        p.Trees,
		featureCount: featureCount,
	}, nil
}

// PredictProba sums each tree's leaf contribution and squashes the margin
// through a sigmoid.
func (e *treeEnsemble) PredictProba(features []float64) (float64, error) {
	if len(features) != e.featureCount {
		return 0, fmt.Errorf("feature vector length %d does not match schema length %d",
			len(features), e.featureCount)
	}

	margin := e.initScore
	for ti := range e.trees {
		leaf, err := e.trees[ti].score(features)
		if err != nil {
			return 0, fmt.Errorf("scoring tree %d: %w", ti, err)
		}
		margin += e.learningRate * leaf
	}

	return sigmoid(margin), nil
}

// score walks the tree from the root to a leaf. The depth guard bounds
// traversal at the node count so a malformed cyclic tree cannot spin forever.
func (t *Tree) score(features []float64) (float64, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if features[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return 0, fmt.Errorf("traversal exceeded %d steps without reaching a leaf", len(t.Nodes))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
