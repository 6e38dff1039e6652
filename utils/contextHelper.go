package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/pharmasync_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyDryRun        = appctx.ContextKeyDryRun
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetDryRunFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyDryRun)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetDryRunInContext(ctx context.Context, dryRun bool) context.Context {
	return appctx.Set(ctx, ContextKeyDryRun, dryRun)
}
