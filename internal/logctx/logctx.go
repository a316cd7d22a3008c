// Package logctx carries request-scoped attributes through a context and
// adds them to every slog record logged with that context.
package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if td, ok := ctx.Value(tokenDataKey{}).(*TokenData); ok {
		r.AddAttrs(slog.Group("token",
			slog.String("sub", td.Subject),
			slog.String("cid", td.ClientID),
			slog.String("kid", td.KeyID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

// RequestDataFrom returns the request attributes stored in ctx, if any.
func RequestDataFrom(ctx context.Context) (*RequestData, bool) {
	rd, ok := ctx.Value(requestDataKey{}).(*RequestData)
	return rd, ok
}

type tokenDataKey struct{}

// TokenData identifies the verified token a request is acting under.
type TokenData struct {
	Subject  string
	ClientID string
	KeyID    string
}

func WithTokenData(ctx context.Context, data *TokenData) context.Context {
	return context.WithValue(ctx, tokenDataKey{}, data)
}
