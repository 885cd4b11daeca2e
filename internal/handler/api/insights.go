package api

import (
	"encoding/json"
	"errors"
	"time"

	models "MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	insightscache "MarketPulse/internal/service/insights"
	"MarketPulse/internal/service/metrics"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// InsightsHandler serves live and cached insights and accepts ETL pushes.
type InsightsHandler struct {
	logger    *xlogger.Logger
	uc        *usecase.InsightsUseCase
	ingestKey string
}

func NewInsightsHandler(logger *xlogger.Logger, uc *usecase.InsightsUseCase, ingestKey string) *InsightsHandler {
	metrics.Register()
	return &InsightsHandler{logger: logger, uc: uc, ingestKey: ingestKey}
}

func (h *InsightsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/insights", noStore)
	g.GET("/summary", h.Summary)
	g.GET("/sentiment", h.Sentiment)
	g.GET("/patterns", h.Patterns)
	g.GET("/breadth_ma", h.BreadthMA)
	g.GET("/cached/summary", h.CachedSummary)
	g.GET("/cached/patterns", h.CachedPatterns)
	g.GET("/cached/sentiment", h.CachedSentiment)
	g.GET("/cached/meta", h.CachedMeta)
	g.POST("/ingest", h.Ingest)
}

func noStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		return next(c)
	}
}

func (h *InsightsHandler) Summary(c echo.Context) (err error) {
	defer observe("summary", time.Now(), &err)
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Summary(c.Request().Context(), req.TF)
	if err != nil {
		return h.fail(c, "summary", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) Sentiment(c echo.Context) (err error) {
	defer observe("sentiment", time.Now(), &err)
	res, err := h.uc.Sentiment(c.Request().Context())
	if err != nil {
		return h.fail(c, "sentiment", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) Patterns(c echo.Context) (err error) {
	defer observe("patterns", time.Now(), &err)
	req := &models.PatternsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Patterns(c.Request().Context(), req.TF)
	if err != nil {
		return h.fail(c, "patterns", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) BreadthMA(c echo.Context) (err error) {
	defer observe("breadth_ma", time.Now(), &err)
	req := &models.BreadthMARequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.BreadthMA(c.Request().Context(), req.MA)
	if err != nil {
		return h.fail(c, "breadth_ma", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) CachedSummary(c echo.Context) error {
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF, domrepo.SummaryDefault())
	return h.cached(c, "summary", insightscache.SummaryKey(tf))
}

func (h *InsightsHandler) CachedPatterns(c echo.Context) error {
	req := &models.PatternsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF, domrepo.PatternsDefault())
	return h.cached(c, "patterns", insightscache.PatternsKey(tf))
}

// CachedSentiment returns the cached sentiment with the latest pushed flip zones.
func (h *InsightsHandler) CachedSentiment(c echo.Context) error {
	e, ok := h.uc.Cached(insightscache.KeySentiment)
	metrics.CacheLookup("sentiment", ok)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no sentiment yet"))
	}
	body := map[string]json.RawMessage{}
	if err := json.Unmarshal(e.Payload, &body); err != nil {
		// not an object; serve as pushed
		return xhttp.SuccessResponse(c, e)
	}
	body["flipZones"] = json.RawMessage("[]")
	if fz, ok := h.uc.Cached(insightscache.KeyFlipZones); ok {
		body["flipZones"] = fz.Payload
	}
	merged, err := json.Marshal(body)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("encode sentiment").WithError(err))
	}
	e.Payload = merged
	return xhttp.SuccessResponse(c, e)
}

func (h *InsightsHandler) CachedMeta(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.uc.CacheMeta())
}

// Ingest accepts an ETL push of precomputed insight payloads.
func (h *InsightsHandler) Ingest(c echo.Context) (err error) {
	defer observe("ingest", time.Now(), &err)
	if err := usecase.CheckIngestKey(h.ingestKey, c.Request().Header.Get(xhttp.HeaderIngestKey)); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError(err.Error()))
	}
	var partial models.PushRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&partial); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("body must be a JSON object").WithError(err))
	}
	meta, err := h.uc.Push(c.Request().Context(), partial)
	if err != nil {
		if errors.Is(err, insightscache.ErrEmptyPush) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		return h.fail(c, "ingest", err)
	}
	return xhttp.SuccessResponse(c, meta)
}

func (h *InsightsHandler) cached(c echo.Context, family, key string) error {
	e, ok := h.uc.Cached(key)
	metrics.CacheLookup(family, ok)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no cached %s", key))
	}
	return xhttp.SuccessResponse(c, e)
}

func (h *InsightsHandler) fail(c echo.Context, endpoint string, err error) error {
	if errors.Is(err, usecase.ErrValidation) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	metrics.InsightsErrors.WithLabelValues(endpoint).Inc()
	h.logger.Error("insights usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("insights unavailable").WithError(err))
}

func observe(endpoint string, start time.Time, err *error) {
	metrics.Observe(endpoint, start, *err)
}
