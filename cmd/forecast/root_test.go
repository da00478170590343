package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"MarketForecast/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points the CLI at a file ledger and an unreachable service.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "predictions.json")
	cfg := fmt.Sprintf("ledger:\n  backend: file\n  path: %s\n", ledgerPath)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	t.Setenv("SERVICE_BASE_URL", "")
	return path, dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestPredictFileAndHistory(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	var csv strings.Builder
	csv.WriteString("date,close\n")
	for i := 1; i <= 30; i++ {
		fmt.Fprintf(&csv, "2024-01-%02d,%d\n", i, 100+i)
	}
	file := filepath.Join(dir, "rising.csv")
	require.NoError(t, os.WriteFile(file, []byte(csv.String()), 0o644))

	out, _, err := run(t, "--config", cfgPath, "predict-file", file, "--lite")
	require.NoError(t, err)

	var p model.Prediction
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "rising.csv", p.Symbol)
	assert.Equal(t, model.DirectionUp, p.Direction)
	assert.Equal(t, model.SourceFileUpload, p.Source)
	assert.Equal(t, "2024-01-30", p.Date)

	out, _, err = run(t, "--config", cfgPath, "history", "--limit", "5")
	require.NoError(t, err)
	var hist struct {
		Records []model.PredictionRecord `json:"records"`
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	require.Len(t, hist.Records, 1)
	assert.Equal(t, "rising.csv", hist.Records[0].Symbol)
	assert.Equal(t, 1, hist.Summary.Total)
}

func TestPredictFileMissing(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	_, errOut, err := run(t, "--config", cfgPath, "predict-file", filepath.Join(dir, "nope.csv"))
	assert.Error(t, err)
	assert.Contains(t, errOut, "nope.csv")
}

func TestPredictNeedsSymbol(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, _, err := run(t, "--config", cfgPath, "predict")
	assert.Error(t, err)
}
