// Package logging provides server hooks that log the lifecycle of every
// Twirp request through a zap logger.
package logging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hopin-team/twirp-go"
)

type contextKey int

const startTimeKey contextKey = iota

// NewServerHooks returns hooks that log request handling to the given
// logger, namespaced under "twirp". Routing steps are logged at debug level,
// completed requests at info, and failures at error with the Twirp code and
// the underlying cause when one is known.
//
// Register the hooks on a server:
//
//	server := haberdasherpb.NewHaberdasherServer(svc,
//		twirp.WithServerHooks(logging.NewServerHooks(logger)))
func NewServerHooks(logger *zap.Logger) *twirp.ServerHooks {
	logger = logger.Named("twirp")
	return &twirp.ServerHooks{
		RequestReceived: func(ctx context.Context) (context.Context, error) {
			logger.Debug("request received", serviceField(ctx))
			return context.WithValue(ctx, startTimeKey, time.Now()), nil
		},
		RequestRouted: func(ctx context.Context) (context.Context, error) {
			logger.Debug("request routed", serviceField(ctx), methodField(ctx))
			return ctx, nil
		},
		Error: func(ctx context.Context, terr *twirp.Error) context.Context {
			logger.Error("request failed",
				serviceField(ctx),
				methodField(ctx),
				zap.String("code", string(terr.Code())),
				zap.String("msg", terr.Msg()),
				zap.NamedError("cause", terr.Cause()),
			)
			return ctx
		},
		ResponseSent: func(ctx context.Context) {
			fields := []zap.Field{serviceField(ctx), methodField(ctx)}
			if status, ok := twirp.StatusCode(ctx); ok {
				fields = append(fields, zap.Int("status", status))
			}
			if start, ok := ctx.Value(startTimeKey).(time.Time); ok {
				fields = append(fields, zap.Duration("duration", time.Since(start)))
			}
			logger.Info("request handled", fields...)
		},
	}
}

func serviceField(ctx context.Context) zap.Field {
	if service, ok := twirp.ServiceName(ctx); ok {
		if pkg, ok := twirp.PackageName(ctx); ok && pkg != "" {
			return zap.String("service", pkg+"."+service)
		}
		return zap.String("service", service)
	}
	return zap.Skip()
}

func methodField(ctx context.Context) zap.Field {
	if method, ok := twirp.MethodName(ctx); ok {
		return zap.String("method", method)
	}
	return zap.Skip()
}
