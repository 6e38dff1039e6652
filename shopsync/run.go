package shopsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/pharmasync_backend/catalog"
	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bitbucket.org/mmdatafocus/pharmasync_backend/shopsync")

// Pipeline stages, in order.
const (
	StageNormalize = "normalize"
	StageDiff      = "diff"
	StageApply     = "apply"
)

// Service holds the shared collaborators of the reconciliation pipeline.
// Exec and MarkupFor are interfaces/funcs so stage logic is testable without
// the real shop API or database.
type Service struct {
	Exec      catalog.Executor
	MarkupFor MarkupLookup
	Limiter   *catalog.Limiter
}

// NewService wires the production service: one rate limiter shared by every
// outbound catalog call of this process, markups resolved from the DB with
// the Redis cache in front.
func NewService() (*Service, error) {
	limiter := catalog.NewLimiterFromEnv()
	client, err := catalog.NewClient(limiter)
	if err != nil {
		return nil, err
	}
	return &Service{
		Exec:      client,
		MarkupFor: models.GetSupplierMarkup,
		Limiter:   limiter,
	}, nil
}

func stageDeadline() time.Duration {
	if raw := os.Getenv("SYNC_DEADLINE_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 9500 * time.Millisecond
}

// RunStage runs one pipeline stage for an import under the distributed
// per-import lock and the stage deadline. Concurrent triggers for the same
// import and stage fail fast instead of overlapping.
//
// A deadline hit surfaces as ErrTimeout; the stage's output transaction either
// committed fully before the deadline or not at all.
func (s *Service) RunStage(ctx context.Context, importId string, stage string) (*ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "shopsync.RunStage", trace.WithAttributes(
		attribute.String("import_id", importId),
		attribute.String("stage", stage),
	))
	defer span.End()

	switch stage {
	case StageNormalize, StageDiff, StageApply:
	default:
		return nil, fmt.Errorf("unknown sync stage %q", stage)
	}

	release, err := utils.ImportLock(ctx, importId, stage, "shopsync", "RunStage")
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, stageDeadline())
	defer cancel()

	db := config.GetDB().WithContext(ctx)
	if err := models.MarkImportStarted(db, importId, time.Now().UTC()); err != nil {
		return nil, err
	}

	var result *ApplyResult
	switch stage {
	case StageNormalize:
		err = RunNormalize(ctx, importId)
	case StageDiff:
		err = s.RunDiff(ctx, importId)
	case StageApply:
		result, err = s.RunApply(ctx, importId, nil)
	}
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return nil, fmt.Errorf("%w: stage %s for import %s", ErrTimeout, stage, importId)
	}
	return result, err
}

// ApplySelected is the apply stage restricted to a subset of pending change
// ids, under the same lock and deadline as a full apply run.
func (s *Service) ApplySelected(ctx context.Context, importId string, changeIds []uint) (*ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "shopsync.ApplySelected", trace.WithAttributes(
		attribute.String("import_id", importId),
		attribute.Int("change_ids", len(changeIds)),
	))
	defer span.End()

	release, err := utils.ImportLock(ctx, importId, StageApply, "shopsync", "ApplySelected")
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, stageDeadline())
	defer cancel()

	db := config.GetDB().WithContext(ctx)
	if err := models.MarkImportStarted(db, importId, time.Now().UTC()); err != nil {
		return nil, err
	}

	result, err := s.RunApply(ctx, importId, changeIds)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return nil, fmt.Errorf("%w: stage %s for import %s", ErrTimeout, StageApply, importId)
	}
	return result, err
}
