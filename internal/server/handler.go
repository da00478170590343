package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"MarketForecast/internal/collector"
	"MarketForecast/internal/ledger"
	"MarketForecast/internal/model"
	"MarketForecast/internal/pipeline"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Forecaster is the subset of pipeline.Service the handlers call.
type Forecaster interface {
	PredictSymbol(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	PredictFile(ctx context.Context, name string, file io.Reader, lightweight bool) (*pipeline.Result, error)
	OHLC(ctx context.Context, symbol, start, end string) (*pipeline.OHLCResult, error)
}

// Error codes returned in the `error` field.
const (
	codeNoData      = "no_data"
	codeEmptySymbol = "empty_symbol"
	codeMissingFile = "missing_file"
	codeInvalid     = "invalid_request"
	codeCanceled    = "canceled"
	codeInternal    = "internal"
)

type errorBody struct {
	Error   string            `json:"error"`
	Details []ValidationError `json:"details,omitempty"`
}

type ohlcRequest struct {
	Ticker string `query:"ticker" validate:"required,max=32"`
	Start  string `query:"start" validate:"max=32"`
	End    string `query:"end" validate:"max=32"`
}

type predictRequest struct {
	Ticker string `query:"ticker" validate:"required,max=32"`
	Start  string `query:"start" validate:"max=32"`
	End    string `query:"end" validate:"max=32"`
	Lite   bool   `query:"lite"`
}

type historyRequest struct {
	Limit int `query:"limit" default:"50" validate:"gte=0,lte=1000"`
}

type ohlcResponse struct {
	Rows     []model.PriceBar `json:"rows"`
	Source   model.Source     `json:"source,omitempty"`
	Provider string           `json:"provider,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type historyResponse struct {
	Records []model.PredictionRecord `json:"records"`
	Summary ledger.Summary           `json:"summary"`
}

// Handler serves the aggregation API.
type Handler struct {
	Forecaster Forecaster
	Ledger     *ledger.Ledger
}

// NewHandler creates a Handler.
func NewHandler(f Forecaster, l *ledger.Ledger) *Handler {
	return &Handler{Forecaster: f, Ledger: l}
}

// RegisterRoutes mounts every endpoint on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/ohlc", h.OHLC)
	e.GET("/predict", h.Predict)
	e.POST("/predict-file", h.PredictFile)
	e.GET("/history", h.History)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// OHLC returns the sanitized series for a ticker. A cascade failure is
// reported in-band with an empty row list.
func (h *Handler) OHLC(c echo.Context) error {
	req := &ohlcRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: codeInvalid, Details: verr})
	}

	res, err := h.Forecaster.OHLC(c.Request().Context(), req.Ticker, req.Start, req.End)
	if err != nil {
		if isNoData(err) {
			return c.JSON(http.StatusOK, ohlcResponse{Rows: []model.PriceBar{}, Error: codeNoData})
		}
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ohlcResponse{Rows: res.Bars, Source: res.Source, Provider: res.Provider})
}

// Predict forecasts the next step for a ticker.
func (h *Handler) Predict(c echo.Context) error {
	req := &predictRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: codeInvalid, Details: verr})
	}

	res, err := h.Forecaster.PredictSymbol(c.Request().Context(), pipeline.Request{
		Symbol:      req.Ticker,
		Start:       req.Start,
		End:         req.End,
		Lightweight: req.Lite,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res.Prediction)
}

// PredictFile forecasts from an uploaded CSV in the multipart field "file".
func (h *Handler) PredictFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: codeMissingFile})
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer f.Close()

	lite := c.QueryParam("lite") == "true" || c.FormValue("lite") == "true"
	res, err := h.Forecaster.PredictFile(c.Request().Context(), fh.Filename, f, lite)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res.Prediction)
}

// History returns the newest ledger records and the summary.
func (h *Handler) History(c echo.Context) error {
	req := &historyRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: codeInvalid, Details: verr})
	}
	records := h.Ledger.List()
	if req.Limit < len(records) {
		records = records[:req.Limit]
	}
	return c.JSON(http.StatusOK, historyResponse{Records: records, Summary: h.Ledger.Summary()})
}

func isNoData(err error) bool {
	return errors.Is(err, collector.ErrNoDataAvailable) || errors.Is(err, pipeline.ErrNoRows)
}

// fail maps a pipeline error onto the {error: code} body.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case isNoData(err):
		return c.JSON(http.StatusOK, errorBody{Error: codeNoData})
	case errors.Is(err, pipeline.ErrEmptySymbol):
		return c.JSON(http.StatusBadRequest, errorBody{Error: codeEmptySymbol})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: codeCanceled})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Error: codeInternal})
	}
}
