package model

import "time"

// Direction is the forecast direction of the next step.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Source records where a prediction's data (or the prediction itself) came from.
type Source string

const (
	SourceRemoteService  Source = "remote-service"
	SourceRemoteChartAPI Source = "remote-chart-api"
	SourceRemoteCSVAPI   Source = "remote-csv-api"
	SourceClientFallback Source = "client-fallback"
	SourceFileUpload     Source = "file-upload"
)

// FeatureWindow is a run of consecutive closes with the direction of the step after it.
type FeatureWindow struct {
	Closes []float64
	Up     bool
}

// Prediction is the output of either predictor mode.
type Prediction struct {
	Direction  Direction `json:"direction"`
	Confidence int       `json:"confidence"`
	Symbol     string    `json:"symbol"`
	Date       string    `json:"date"`
	Source     Source    `json:"source"`
	Points     int       `json:"points"`
}

// PredictionRecord is a Prediction as stored in the ledger.
type PredictionRecord struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Date       string    `json:"date"`
	Direction  Direction `json:"direction"`
	Confidence int       `json:"confidence"`
	Source     Source    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
