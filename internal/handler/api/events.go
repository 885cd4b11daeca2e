package api

import (
	"encoding/json"
	"errors"
	"fmt"

	models "MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EventsHandler accepts event envelopes over HTTP.
type EventsHandler struct {
	logger    *xlogger.Logger
	ingestor  *usecase.EventIngestor
	limiter   *ratelimit.Limiter
	ingestKey string
	maxBatch  int
}

func NewEventsHandler(logger *xlogger.Logger, ingestor *usecase.EventIngestor, limiter *ratelimit.Limiter, ingestKey string, maxBatch int) *EventsHandler {
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	return &EventsHandler{logger: logger, ingestor: ingestor, limiter: limiter, ingestKey: ingestKey, maxBatch: maxBatch}
}

func (h *EventsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/events", h.guard)
	g.POST("", h.Post)
	g.POST("/batch", h.PostBatch)
}

// guard checks the ingest key, then the per-key rate limit.
func (h *EventsHandler) guard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(xhttp.HeaderIngestKey)
		if err := usecase.CheckIngestKey(h.ingestKey, key); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError(err.Error()))
		}
		if h.limiter != nil && !h.limiter.Allow(key) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("ingest rate limit exceeded"))
		}
		return next(c)
	}
}

// Post ingests a single envelope.
func (h *EventsHandler) Post(c echo.Context) error {
	req := &models.Envelope{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	err := h.ingestor.Ingest(c.Request().Context(), *req)
	var verr *usecase.ValidationError
	switch {
	case err == nil:
		return xhttp.AcceptedResponse(c, map[string]string{"kind": string(req.Kind)})
	case errors.As(err, &verr):
		return xhttp.BadRequestResponse(c, verr.Fields)
	case errors.Is(err, usecase.ErrUnknownKind):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	default:
		h.logger.Error("event ingest failed", xlogger.String("kind", string(req.Kind)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("ingest failed").WithError(err))
	}
}

// PostBatch ingests a JSON array of envelopes. Invalid envelopes are reported
// per index; valid ones are applied.
func (h *EventsHandler) PostBatch(c echo.Context) error {
	var envs []models.Envelope
	if err := json.NewDecoder(c.Request().Body).Decode(&envs); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("body must be a JSON array of events").WithError(err))
	}
	if len(envs) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("empty batch"))
	}
	if len(envs) > h.maxBatch {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(fmt.Sprintf("batch exceeds %d events", h.maxBatch)).
			WithParam("max", h.maxBatch))
	}
	res := h.ingestor.IngestBatch(c.Request().Context(), envs)
	if res.Accepted == 0 {
		return xhttp.BadRequestResponse(c, res)
	}
	return xhttp.AcceptedResponse(c, res)
}
