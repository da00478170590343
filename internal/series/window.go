package series

import "MarketForecast/internal/model"

const (
	// WindowSize is the number of consecutive closes in one feature window.
	WindowSize = 20
	// MinTrainingWindows is the fewest windows the classifier will train on.
	MinTrainingWindows = 50
	// TrainFraction is the chronological share of windows used for training.
	TrainFraction = 0.8
)

// Windows builds max(0, n-w-1) windows from an ascending close series. Window k
// covers closes[k:k+w]; its label is up when closes[k+w+1] >= closes[k+w].
func Windows(closes []float64, w int) []model.FeatureWindow {
	if w <= 0 {
		return nil
	}
	count := len(closes) - w - 1
	if count <= 0 {
		return nil
	}
	windows := make([]model.FeatureWindow, count)
	for k := 0; k < count; k++ {
		seq := make([]float64, w)
		copy(seq, closes[k:k+w])
		windows[k] = model.FeatureWindow{
			Closes: seq,
			Up:     closes[k+w+1] >= closes[k+w],
		}
	}
	return windows
}

// Trainable reports whether n closes yield enough windows of width w to train.
func Trainable(n, w int) bool {
	return n-w-1 >= MinTrainingWindows
}

// Split divides windows into train and validation sets without reordering, so
// no validation window precedes a training window.
func Split(windows []model.FeatureWindow, fraction float64) (train, val []model.FeatureWindow) {
	if fraction <= 0 || fraction >= 1 {
		fraction = TrainFraction
	}
	idx := int(float64(len(windows)) * fraction)
	return windows[:idx], windows[idx:]
}
