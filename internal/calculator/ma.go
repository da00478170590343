package calculator

import (
	"errors"
	"math"
)

// ErrNotEnoughData is returned when a series is shorter than the requested period.
var ErrNotEnoughData = errors.New("not enough data points")

// CalculateSMA returns the simple moving average of the last `period` values.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, ErrNotEnoughData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std /= float64(len(values))
	if std > 0 {
		std = math.Sqrt(std)
	}
	return mean, std
}
