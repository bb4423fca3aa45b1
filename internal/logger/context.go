package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// requestFields travel with a request and tag every line logged through it.
type requestFields struct {
	RequestID string
	UserID    string
	Role      string
}

func fieldsFrom(ctx context.Context) requestFields {
	if ctx == nil {
		return requestFields{}
	}
	f, _ := ctx.Value(ctxKey{}).(requestFields)
	return f
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	f := fieldsFrom(ctx)
	f.RequestID = requestID
	return context.WithValue(ctx, ctxKey{}, f)
}

// WithActor records the authenticated caller.
func WithActor(ctx context.Context, userID, role string) context.Context {
	f := fieldsFrom(ctx)
	f.UserID = userID
	f.Role = role
	return context.WithValue(ctx, ctxKey{}, f)
}

func GetRequestID(ctx context.Context) string {
	return fieldsFrom(ctx).RequestID
}

func GetUserID(ctx context.Context) string {
	return fieldsFrom(ctx).UserID
}

// FromContext returns the global logger tagged with whatever request
// fields ctx carries.
func FromContext(ctx context.Context) *slog.Logger {
	f := fieldsFrom(ctx)
	var attrs []any
	if f.RequestID != "" {
		attrs = append(attrs, "request_id", f.RequestID)
	}
	if f.UserID != "" {
		attrs = append(attrs, "user_id", f.UserID, "role", f.Role)
	}
	if len(attrs) == 0 {
		return GetLogger()
	}
	return GetLogger().With(attrs...)
}

func CtxDebug(ctx context.Context, msg string, args ...any) { FromContext(ctx).Debug(msg, args...) }
func CtxInfo(ctx context.Context, msg string, args ...any)  { FromContext(ctx).Info(msg, args...) }
func CtxWarn(ctx context.Context, msg string, args ...any)  { FromContext(ctx).Warn(msg, args...) }
func CtxError(ctx context.Context, msg string, args ...any) { FromContext(ctx).Error(msg, args...) }

// CtxWithError logs at error level with err attached.
func CtxWithError(ctx context.Context, msg string, err error, args ...any) {
	FromContext(ctx).Error(msg, append([]any{"error", err.Error()}, args...)...)
}
