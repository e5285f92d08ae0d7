package bus

import (
	"fmt"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

// New creates an event bus based on configuration: "channel" for the
// in-process bus, "nats" for the external broker.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("%w: unsupported event bus type %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}
