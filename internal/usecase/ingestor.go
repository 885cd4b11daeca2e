package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/state"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
	"MarketPulse/pkg/validate"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnknownKind  = errors.New("unknown event kind")
	ErrUnauthorized = errors.New("ingest key is invalid")
)

// CheckIngestKey compares the presented key with the configured one in
// constant time. An empty configured key rejects everything.
func CheckIngestKey(configured, presented string) error {
	if configured == "" || subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// ValidationError carries the field errors of a rejected event.
type ValidationError struct {
	Kind   models.EventKind
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return fmt.Sprintf("%s event: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// BatchRejection describes one rejected envelope of a batch.
type BatchRejection struct {
	Index  int                   `json:"index"`
	Kind   models.EventKind      `json:"kind,omitempty"`
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

// BatchResult summarizes IngestBatch.
type BatchResult struct {
	Accepted int              `json:"accepted"`
	Rejected []BatchRejection `json:"rejected"`
}

// EventIngestor validates inbound events and applies them to the state store.
type EventIngestor struct {
	store     *state.Store
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
	onApplied func(models.EventKind)
}

type IngestorOption func(*EventIngestor)

// WithIngestClock overrides the clock used for missing timestamps.
func WithIngestClock(now func() time.Time) IngestorOption {
	return func(i *EventIngestor) { i.now = now }
}

// WithOnApplied registers a callback run after every applied event.
func WithOnApplied(fn func(models.EventKind)) IngestorOption {
	return func(i *EventIngestor) { i.onApplied = fn }
}

func NewEventIngestor(store *state.Store, metrics domrepo.Metrics, log *logger.Logger, opts ...IngestorOption) *EventIngestor {
	i := &EventIngestor{
		store:   store,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SetOnApplied replaces the post-apply callback. Not safe to call concurrently with ingestion.
func (i *EventIngestor) SetOnApplied(fn func(models.EventKind)) { i.onApplied = fn }

func (i *EventIngestor) IngestQuote(ctx context.Context, ev models.QuoteEvent) (models.Tick, error) {
	ev.Symbol = util.NormalizeSymbol(ev.Symbol)
	if err := i.check(ctx, models.KindQuote, &ev); err != nil {
		return models.Tick{}, err
	}
	tick := i.store.ApplyQuote(state.QuoteUpdate{
		Symbol:       ev.Symbol,
		Last:         *ev.Last,
		PrevClose:    ev.PrevClose,
		Volume:       ev.Volume,
		UpVolDelta:   ev.DeltaVolUp,
		DownVolDelta: ev.DeltaVolDn,
		Timestamp:    i.stamp(ev.TS),
	})
	i.metrics.RecordLastPrice(tick.Symbol, tick.Last)
	i.applied(models.KindQuote)
	return tick, nil
}

func (i *EventIngestor) IngestIV(ctx context.Context, ev models.IVEvent) (models.IVRecord, error) {
	ev.Symbol = util.NormalizeSymbol(ev.Symbol)
	if err := i.check(ctx, models.KindIV, &ev); err != nil {
		return models.IVRecord{}, err
	}
	rec := i.store.ApplyIV(ev.Symbol, *ev.IV, i.stamp(ev.TS))
	i.applied(models.KindIV)
	return rec, nil
}

func (i *EventIngestor) IngestOrderFlow(ctx context.Context, ev models.OrderFlowEvent) error {
	ev.Symbol = util.NormalizeSymbol(ev.Symbol)
	ev.Side = strings.ToUpper(strings.TrimSpace(ev.Side))
	if err := i.check(ctx, models.KindOrderFlow, &ev); err != nil {
		return err
	}
	i.store.AppendOrderFlow(models.OrderFlowPrint{
		Symbol:    ev.Symbol,
		Side:      models.OptionSide(ev.Side),
		Size:      *ev.Size,
		Notional:  ev.Notional,
		OIDelta:   ev.OIDelta,
		Timestamp: i.stamp(ev.TS),
	})
	i.applied(models.KindOrderFlow)
	return nil
}

func (i *EventIngestor) IngestNews(ctx context.Context, ev models.NewsEvent) error {
	ev.Symbol = util.NormalizeSymbol(ev.Symbol)
	if err := i.check(ctx, models.KindNews, &ev); err != nil {
		return err
	}
	i.store.AppendNews(models.NewsScore{
		Symbol:    ev.Symbol,
		Score:     *ev.Score,
		Timestamp: i.stamp(ev.TS),
	})
	i.applied(models.KindNews)
	return nil
}

func (i *EventIngestor) IngestDarkPool(ctx context.Context, ev models.DarkPoolEvent) error {
	ev.Symbol = util.NormalizeSymbol(ev.Symbol)
	ev.Side = strings.ToUpper(strings.TrimSpace(ev.Side))
	if err := i.check(ctx, models.KindDarkPool, &ev); err != nil {
		return err
	}
	i.store.AppendDarkPool(models.DarkPoolPrint{
		Symbol:    ev.Symbol,
		Notional:  *ev.Notional,
		Side:      models.TradeSide(ev.Side),
		Timestamp: i.stamp(ev.TS),
	})
	i.applied(models.KindDarkPool)
	return nil
}

// Ingest decodes env.Data according to env.Kind and applies it.
func (i *EventIngestor) Ingest(ctx context.Context, env models.Envelope) error {
	kind := models.EventKind(strings.ToLower(strings.TrimSpace(string(env.Kind))))
	switch kind {
	case models.KindQuote:
		var ev models.QuoteEvent
		if err := i.decode(kind, env.Data, &ev); err != nil {
			return err
		}
		_, err := i.IngestQuote(ctx, ev)
		return err
	case models.KindIV:
		var ev models.IVEvent
		if err := i.decode(kind, env.Data, &ev); err != nil {
			return err
		}
		_, err := i.IngestIV(ctx, ev)
		return err
	case models.KindOrderFlow:
		var ev models.OrderFlowEvent
		if err := i.decode(kind, env.Data, &ev); err != nil {
			return err
		}
		return i.IngestOrderFlow(ctx, ev)
	case models.KindNews:
		var ev models.NewsEvent
		if err := i.decode(kind, env.Data, &ev); err != nil {
			return err
		}
		return i.IngestNews(ctx, ev)
	case models.KindDarkPool:
		var ev models.DarkPoolEvent
		if err := i.decode(kind, env.Data, &ev); err != nil {
			return err
		}
		return i.IngestDarkPool(ctx, ev)
	default:
		i.metrics.RecordEventRejected(string(kind), "unknown_kind")
		return fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

// IngestBatch applies envelopes in order. A rejected envelope does not stop the batch.
func (i *EventIngestor) IngestBatch(ctx context.Context, envs []models.Envelope) BatchResult {
	res := BatchResult{Rejected: []BatchRejection{}}
	for idx, env := range envs {
		if err := ctx.Err(); err != nil {
			for j := idx; j < len(envs); j++ {
				res.Rejected = append(res.Rejected, BatchRejection{Index: j, Kind: envs[j].Kind, Error: err.Error()})
			}
			break
		}
		err := i.Ingest(ctx, env)
		if err == nil {
			res.Accepted++
			continue
		}
		rej := BatchRejection{Index: idx, Kind: env.Kind, Error: err.Error()}
		var ve *ValidationError
		if errors.As(err, &ve) {
			rej.Fields = ve.Fields
		}
		res.Rejected = append(res.Rejected, rej)
	}
	return res
}

func (i *EventIngestor) decode(kind models.EventKind, data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return i.reject(kind, []validate.FieldError{{Code: "ERR_REQUIRED", Field: "data", Message: "data is required"}})
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return i.reject(kind, []validate.FieldError{{Code: "ERR_DECODE", Field: "data", Message: err.Error()}})
	}
	return nil
}

func (i *EventIngestor) check(ctx context.Context, kind models.EventKind, ev interface{}) error {
	if err := validate.Struct(ctx, ev); err != nil {
		return i.reject(kind, validate.Fields(err))
	}
	return nil
}

func (i *EventIngestor) reject(kind models.EventKind, fields []validate.FieldError) error {
	i.metrics.RecordEventRejected(string(kind), "validation")
	i.log.Debug("event rejected", logger.String("kind", string(kind)), logger.Any("fields", fields))
	return &ValidationError{Kind: kind, Fields: fields}
}

func (i *EventIngestor) stamp(ts models.EventTime) time.Time {
	if ts.IsZero() {
		return i.now()
	}
	return ts.Time
}

func (i *EventIngestor) applied(kind models.EventKind) {
	i.metrics.RecordEventIngested(string(kind))
	if i.onApplied != nil {
		i.onApplied(kind)
	}
}
