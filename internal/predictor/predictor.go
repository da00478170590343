// Package predictor turns a close series into a next-step direction forecast,
// training a small classifier when there is enough history and falling back to
// a moving-average heuristic otherwise.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"MarketForecast/internal/metrics"
	"MarketForecast/internal/model"
	"MarketForecast/internal/series"

	"github.com/rs/zerolog/log"
)

// ErrInsufficientData means there are too few windows to train on.
var ErrInsufficientData = errors.New("insufficient data for training")

// Mode is the state the predictor ended in for a call.
type Mode int

const (
	ModeNotReady Mode = iota
	ModeTrained
	ModeHeuristic
)

func (m Mode) String() string {
	switch m {
	case ModeTrained:
		return "trained"
	case ModeHeuristic:
		return "heuristic"
	default:
		return "not_ready"
	}
}

const (
	minTrainedConf = 50
	maxTrainedConf = 99
)

// Outcome is the result of one Predict call.
type Outcome struct {
	Mode        Mode
	Direction   model.Direction
	Confidence  int
	Probability float64
	Report      *TrainingReport
}

// Options alters a single Predict call.
type Options struct {
	// Lightweight skips training and uses the heuristic directly.
	Lightweight bool
}

// Config configures the Predictor.
type Config struct {
	Window     int
	Classifier ClassifierConfig
}

// Predictor is safe for concurrent use. Each call trains a fresh classifier.
type Predictor struct {
	cfg     Config
	metrics *metrics.Recorder
	build   func(ClassifierConfig) *Classifier

	mu   sync.Mutex
	last Mode
}

// New creates a Predictor. rec may be nil.
func New(cfg Config, rec *metrics.Recorder) *Predictor {
	if cfg.Window <= 0 {
		cfg.Window = series.WindowSize
	}
	cfg.Classifier.Inputs = cfg.Window
	return &Predictor{cfg: cfg, metrics: rec, build: NewClassifier}
}

// Window returns the feature window size.
func (p *Predictor) Window() int { return p.cfg.Window }

// Mode reports the mode of the most recent call; NotReady before any call.
func (p *Predictor) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Predict forecasts the direction of the step after the last close. Training
// problems are never returned; they route this call to the heuristic.
func (p *Predictor) Predict(ctx context.Context, closes []float64, opts Options) Outcome {
	var out Outcome
	if opts.Lightweight {
		out = p.heuristic(closes)
	} else if trained, err := p.train(ctx, closes); err != nil {
		if errors.Is(err, ErrInsufficientData) {
			log.Debug().Int("points", len(closes)).Msg("not enough history to train, using heuristic")
		} else {
			log.Warn().Err(err).Int("points", len(closes)).Msg("training failed, using heuristic")
		}
		out = p.heuristic(closes)
	} else {
		out = trained
	}

	p.mu.Lock()
	p.last = out.Mode
	p.mu.Unlock()
	p.metrics.RecordPrediction(out.Mode.String(), string(out.Direction), out.Confidence)
	return out
}

func (p *Predictor) heuristic(closes []float64) Outcome {
	dir, conf := Heuristic(closes, p.cfg.Window)
	return Outcome{Mode: ModeHeuristic, Direction: dir, Confidence: conf}
}

func (p *Predictor) train(ctx context.Context, closes []float64) (out Outcome, err error) {
	w := p.cfg.Window
	if !series.Trainable(len(closes), w) {
		return Outcome{}, ErrInsufficientData
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("training panic: %v", r)
		}
	}()

	train, val := series.Split(series.Windows(closes, w), series.TrainFraction)
	clf := p.build(p.cfg.Classifier)
	report, err := clf.Train(ctx, train, val)
	if err != nil {
		return Outcome{}, err
	}
	prob, err := clf.Probability(closes[len(closes)-w:])
	if err != nil {
		return Outcome{}, err
	}

	dir, conf := trainedVerdict(prob)
	return Outcome{
		Mode:        ModeTrained,
		Direction:   dir,
		Confidence:  conf,
		Probability: prob,
		Report:      &report,
	}, nil
}

// trainedVerdict maps P(up) to a direction and the winning side's probability
// as a percentage.
func trainedVerdict(prob float64) (model.Direction, int) {
	dir := model.DirectionDown
	side := 1 - prob
	if prob >= 0.5 {
		dir = model.DirectionUp
		side = prob
	}
	return dir, clamp(int(math.Round(side*100)), minTrainedConf, maxTrainedConf)
}
