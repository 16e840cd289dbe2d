// Package logger builds *slog.Logger instances for courier services and
// provides attribute helpers that keep key names consistent across packages.
//
// New applies functional options (format, level, static attributes, context
// extractors) and wraps the selected slog handler with LogHandlerDecorator,
// which copies request- or job-scoped values from context.Context into each
// record.
//
// # Usage
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "courier"))
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelWarn, "delivery failed",
//	    logger.DeliveryID(d.ID),
//	    logger.ChannelType(string(d.ChannelType)),
//	    logger.Attempt(d.AttemptCount),
//	    logger.Error(err),
//	)
//
// Error and the identifier helpers return an empty slog.Attr for nil input,
// so call sites never need a separate nil check.
package logger
