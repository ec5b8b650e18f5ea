package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/csv2xlsx/internal/core"
	"github.com/JonMunkholm/csv2xlsx/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and uploaded file name to ctx for
// conversion history.
func WithRequestMetadata(ctx context.Context, r *http.Request, sourceName string) context.Context {
	ctx = core.ContextWithClientIP(ctx, middleware.ClientIP(r))
	if sourceName != "" {
		ctx = core.ContextWithSourceName(ctx, sourceName)
	}
	return ctx
}
