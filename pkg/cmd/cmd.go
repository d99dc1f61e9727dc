// Package cmd is a transport-agnostic command core: a command has a name, a
// description and Run(ctx, invocation). Registration with a chat platform is
// left to adapters that wrap it.
package cmd

import "context"

// Invocation carries the arguments and an opaque adapter payload, such as a
// Discord interaction context.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware wraps a command (logging, permission checks, metrics).
type Middleware func(Command) Command

// Apply wraps c so that the first middleware is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
