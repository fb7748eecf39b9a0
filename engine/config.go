package engine

import (
	"context"
)

const (
	// scannerInitialBufferSize is the initial buffer size for the line scanner.
	scannerInitialBufferSize = 64 * 1024 // 64KB

	// scannerMaxBufferSize is the maximum buffer size for the line scanner.
	// kata-analyze lines with many candidates and long variations stay well
	// below this.
	scannerMaxBufferSize = 1024 * 1024 // 1MB
)

// CommandFactory creates Command instances from engine Configs.
// This abstraction enables dependency injection for testing and alternative
// command implementations.
//
// Standard usage (production):
//
//	factory := engine.DefaultCommandFactory
//
// Testing with mocks:
//
//	factory := func(ctx context.Context, cfg engine.Config) (engine.Command, error) {
//	    return &MockCommand{stdout: []string{"= ", "info move D4 visits 1"}}, nil
//	}
type CommandFactory func(ctx context.Context, cfg Config) (Command, error)

// Option configures Start.
type Option func(*options)

type options struct {
	factory CommandFactory
}

// WithCommandFactory makes Start build its command with factory instead of
// DefaultCommandFactory. A nil factory is ignored.
func WithCommandFactory(factory CommandFactory) Option {
	return func(o *options) {
		if factory != nil {
			o.factory = factory
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{factory: DefaultCommandFactory}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
