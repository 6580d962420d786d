package trending

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vicinaehq/backend/internal/common/apperrors"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
	"github.com/vicinaehq/backend/internal/storesrv/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vicinaehq/backend/internal/storesrv/trending"

type Catalog interface {
	ListRankingInputs(ctx context.Context) ([]models.RankingInput, apperrors.Error)
	ApplyTrending(ctx context.Context, ids []uuid.UUID) apperrors.Error
	SetTrending(ctx context.Context, id uuid.UUID, trending bool) apperrors.Error
}

type RunResult struct {
	Candidates int
	Trending   []uuid.UUID
	RanAt      time.Time
}

type Ranker struct {
	catalog Catalog
	params  Params
	metrics *metrics.Metrics
	now     func() time.Time
	tracer  trace.Tracer
}

func NewRanker(catalog Catalog, params Params, m *metrics.Metrics) *Ranker {
	return &Ranker{
		catalog: catalog,
		params:  params,
		metrics: m,
		now:     time.Now,
		tracer:  otel.Tracer(tracerName),
	}
}

// Run recomputes the trending set from a snapshot of the catalog and writes it back atomically.
func (r *Ranker) Run(ctx context.Context) (result *RunResult, err error) {
	ctx, span := r.tracer.Start(ctx, "trending.run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		n := 0
		if result != nil {
			n = len(result.Trending)
		}
		r.metrics.ObserveTrending(n, err)
	}()

	inputs, aerr := r.catalog.ListRankingInputs(ctx)
	if aerr != nil {
		return nil, aerr
	}
	now := r.now()
	ids := Rank(inputs, now, r.params)
	if aerr := r.catalog.ApplyTrending(ctx, ids); aerr != nil {
		return nil, aerr
	}
	span.SetAttributes(attribute.Int("trending.inputs", len(inputs)), attribute.Int("trending.count", len(ids)))
	log.Ctx(ctx).Info().Int("extensions", len(inputs)).Int("trending", len(ids)).Msg("trending updated")
	return &RunResult{Candidates: len(inputs), Trending: ids, RanAt: now}, nil
}

// Scheduler runs the ranker on a fixed interval.
type Scheduler struct {
	ranker   *Ranker
	interval time.Duration
}

func NewScheduler(r *Ranker, interval time.Duration) *Scheduler {
	return &Scheduler{ranker: r, interval: interval}
}

// Start runs the ranker every interval until ctx is cancelled. A zero interval disables it.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		log.Ctx(ctx).Info().Msg("trending schedule disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ranker.Run(ctx); err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("scheduled trending update failed")
				}
			}
		}
	}()
}

// Mark flags one extension as trending by hand. The next run recomputes the flag.
func (r *Ranker) Mark(ctx context.Context, id uuid.UUID) error {
	if err := r.catalog.SetTrending(ctx, id, true); err != nil {
		return err
	}
	return nil
}

// Unmark clears the trending flag of one extension by hand.
func (r *Ranker) Unmark(ctx context.Context, id uuid.UUID) error {
	if err := r.catalog.SetTrending(ctx, id, false); err != nil {
		return err
	}
	return nil
}
