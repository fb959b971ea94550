package capture

import (
	"fmt"
	"log/slog"
)

// New creates a capture engine for the configured backend.
func New(cfg Config, logger *slog.Logger) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("capture: invalid config: %w", err)
	}

	switch cfg.Backend {
	case BackendAuto, BackendMalgo:
		return NewMalgoEngine(cfg, logger), nil
	case BackendMock:
		return NewMockEngine(cfg, logger), nil
	default:
		return nil, fmt.Errorf("capture: unknown backend %q", cfg.Backend)
	}
}
