package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"filmklub/internal/command"
	"filmklub/internal/metrics"
	"filmklub/pkg/cmd"
)

// WithCommandLogger logs each invocation and counts it by result.
// Autocomplete requests are not logged.
func WithCommandLogger(logger zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if _, ok := inv.Data.(*command.AutocompleteContext); ok {
				return c.Run(ctx, inv)
			}

			start := time.Now()
			err := c.Run(ctx, inv)

			ev := logger.Info()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			if e := event(inv); e != nil {
				user := command.User(e)
				ev = ev.Str("guild", e.GuildID).Str("channel", e.ChannelID).Str("user", user.ID).Str("username", user.Username)
			}
			ev.Str("command", c.Name()).Dur("took", time.Since(start)).Msg("Command handled")

			metrics.ObserveCommand(c.Name(), err)
			return err
		})
	}
}
