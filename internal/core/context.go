package core

import "context"

type contextKey string

const (
	ctxKeyClientIP   contextKey = "client_ip"
	ctxKeySourceName contextKey = "source_name"
)

// ContextWithClientIP records the requesting client for conversion history.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ContextWithSourceName records the uploaded file name for conversion history.
func ContextWithSourceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeySourceName, name)
}

// ClientIPFromContext returns the client IP or "".
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// SourceNameFromContext returns the uploaded file name or "".
func SourceNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySourceName).(string); ok {
		return v
	}
	return ""
}
