package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"MarketForecast/internal/calculator"
	"MarketForecast/internal/model"

	"github.com/rs/zerolog/log"
)

// ErrDiverged is returned when training produces a non-finite loss.
var ErrDiverged = errors.New("training diverged")

// ClassifierConfig sizes the network and its training loop.
type ClassifierConfig struct {
	Inputs       int
	Hidden1      int
	Hidden2      int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
}

// DefaultClassifierConfig is a 20-64-32-1 network trained for 15 epochs.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Inputs:       20,
		Hidden1:      64,
		Hidden2:      32,
		Epochs:       15,
		BatchSize:    32,
		LearningRate: 0.05,
		Seed:         1,
	}
}

// TrainingReport captures a completed training run.
type TrainingReport struct {
	TrainSamples       int
	ValSamples         int
	Epochs             int
	FinalLoss          float64
	ValidationAccuracy float64
}

type layer struct {
	w [][]float64 // [out][in]
	b []float64
}

func newLayer(rng *rand.Rand, in, out int) layer {
	scale := math.Sqrt(2.0 / float64(in))
	l := layer{w: make([][]float64, out), b: make([]float64, out)}
	for i := range l.w {
		l.w[i] = make([]float64, in)
		for j := range l.w[i] {
			l.w[i][j] = rng.NormFloat64() * scale
		}
	}
	return l
}

func (l layer) forward(x []float64) []float64 {
	z := make([]float64, len(l.b))
	for i, row := range l.w {
		sum := l.b[i]
		for j, v := range x {
			sum += row[j] * v
		}
		z[i] = sum
	}
	return z
}

type gradients struct {
	w [][]float64
	b []float64
}

func zeroGrad(l layer) gradients {
	g := gradients{w: make([][]float64, len(l.w)), b: make([]float64, len(l.b))}
	for i := range l.w {
		g.w[i] = make([]float64, len(l.w[i]))
	}
	return g
}

func (l layer) apply(g gradients, lr float64) {
	for i := range l.w {
		for j := range l.w[i] {
			l.w[i][j] -= lr * g.w[i][j]
		}
		l.b[i] -= lr * g.b[i]
	}
}

// Classifier is a small feed-forward binary classifier over close windows:
// two ReLU hidden layers and a sigmoid output trained with binary cross-entropy.
type Classifier struct {
	cfg    ClassifierConfig
	l1, l2 layer
	out    layer
}

// NewClassifier creates an untrained classifier with seeded weights.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	def := DefaultClassifierConfig()
	if cfg.Inputs <= 0 {
		cfg.Inputs = def.Inputs
	}
	if cfg.Hidden1 <= 0 {
		cfg.Hidden1 = def.Hidden1
	}
	if cfg.Hidden2 <= 0 {
		cfg.Hidden2 = def.Hidden2
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Classifier{
		cfg: cfg,
		l1:  newLayer(rng, cfg.Inputs, cfg.Hidden1),
		l2:  newLayer(rng, cfg.Hidden1, cfg.Hidden2),
		out: newLayer(rng, cfg.Hidden2, 1),
	}
}

// normalize z-scores a window so the network sees shape rather than price level.
func normalize(closes []float64) []float64 {
	mean, std := calculator.MeanStd(closes)
	x := make([]float64, len(closes))
	if std == 0 {
		return x
	}
	for i, v := range closes {
		x[i] = (v - mean) / std
	}
	return x
}

func relu(z []float64) []float64 {
	a := make([]float64, len(z))
	for i, v := range z {
		if v > 0 {
			a[i] = v
		}
	}
	return a
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

type activations struct {
	x, z1, a1, z2, a2 []float64
	p                 float64
}

func (c *Classifier) forward(closes []float64) activations {
	var act activations
	act.x = normalize(closes)
	act.z1 = c.l1.forward(act.x)
	act.a1 = relu(act.z1)
	act.z2 = c.l2.forward(act.a1)
	act.a2 = relu(act.z2)
	act.p = sigmoid(c.out.forward(act.a2)[0])
	return act
}

// Probability returns P(up) for the given window of closes.
func (c *Classifier) Probability(closes []float64) (float64, error) {
	if len(closes) != c.cfg.Inputs {
		return 0, fmt.Errorf("window has %d closes, want %d", len(closes), c.cfg.Inputs)
	}
	p := c.forward(closes).p
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, ErrDiverged
	}
	return p, nil
}

func (c *Classifier) backprop(act activations, y float64, g1, g2, g3 gradients) {
	d3 := act.p - y
	for j, a := range act.a2 {
		g3.w[0][j] += d3 * a
	}
	g3.b[0] += d3

	d2 := make([]float64, len(act.z2))
	for j := range d2 {
		if act.z2[j] > 0 {
			d2[j] = d3 * c.out.w[0][j]
		}
	}
	for j, d := range d2 {
		if d == 0 {
			continue
		}
		for i, a := range act.a1 {
			g2.w[j][i] += d * a
		}
		g2.b[j] += d
	}

	for i := range act.z1 {
		if act.z1[i] <= 0 {
			continue
		}
		d1 := 0.0
		for j, d := range d2 {
			d1 += d * c.l2.w[j][i]
		}
		for k, v := range act.x {
			g1.w[i][k] += d1 * v
		}
		g1.b[i] += d1
	}
}

func scale(g gradients, f float64) {
	for i := range g.w {
		for j := range g.w[i] {
			g.w[i][j] *= f
		}
		g.b[i] *= f
	}
}

// Train fits the network on train in order and reports accuracy on val.
// Windows are consumed chronologically in mini-batches; ctx is checked
// between batches.
func (c *Classifier) Train(ctx context.Context, train, val []model.FeatureWindow) (TrainingReport, error) {
	report := TrainingReport{TrainSamples: len(train), ValSamples: len(val)}
	if len(train) == 0 {
		return report, ErrInsufficientData
	}

	for epoch := 0; epoch < c.cfg.Epochs; epoch++ {
		totalLoss := 0.0
		for start := 0; start < len(train); start += c.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			end := min(start+c.cfg.BatchSize, len(train))
			g1, g2, g3 := zeroGrad(c.l1), zeroGrad(c.l2), zeroGrad(c.out)
			for _, w := range train[start:end] {
				if len(w.Closes) != c.cfg.Inputs {
					return report, fmt.Errorf("window has %d closes, want %d", len(w.Closes), c.cfg.Inputs)
				}
				act := c.forward(w.Closes)
				y := label(w)
				totalLoss += crossEntropy(act.p, y)
				c.backprop(act, y, g1, g2, g3)
			}
			f := 1 / float64(end-start)
			scale(g1, f)
			scale(g2, f)
			scale(g3, f)
			c.l1.apply(g1, c.cfg.LearningRate)
			c.l2.apply(g2, c.cfg.LearningRate)
			c.out.apply(g3, c.cfg.LearningRate)
		}
		report.Epochs = epoch + 1
		report.FinalLoss = totalLoss / float64(len(train))
		if math.IsNaN(report.FinalLoss) || math.IsInf(report.FinalLoss, 0) {
			return report, ErrDiverged
		}
		log.Debug().Int("epoch", epoch).Float64("loss", report.FinalLoss).Msg("classifier epoch")
	}

	report.ValidationAccuracy = c.accuracy(val)
	return report, nil
}

func (c *Classifier) accuracy(windows []model.FeatureWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	correct := 0
	for _, w := range windows {
		if (c.forward(w.Closes).p >= 0.5) == w.Up {
			correct++
		}
	}
	return float64(correct) / float64(len(windows))
}

func label(w model.FeatureWindow) float64 {
	if w.Up {
		return 1
	}
	return 0
}

func crossEntropy(p, y float64) float64 {
	const eps = 1e-7
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
