package predictor

import (
	"math"

	"MarketForecast/internal/calculator"
	"MarketForecast/internal/model"
)

const (
	// NoSignalConfidence is reported when there is too little data for any signal.
	NoSignalConfidence = 50
	minHeuristicConf   = 55
	maxHeuristicConf   = 95
)

// Heuristic compares the latest close with its trailing w-period SMA. The
// distance from the average, as a percentage, becomes the confidence.
func Heuristic(closes []float64, w int) (model.Direction, int) {
	avg, err := calculator.CalculateSMA(closes, w)
	if err != nil || avg == 0 || math.IsNaN(avg) {
		return model.DirectionDown, NoSignalConfidence
	}
	last := closes[len(closes)-1]

	dir := model.DirectionDown
	if last > avg {
		dir = model.DirectionUp
	}
	conf := int(math.Round(math.Abs(last-avg) / avg * 100))
	return dir, clamp(conf, minHeuristicConf, maxHeuristicConf)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
