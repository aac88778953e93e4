package realtime

import (
	"errors"
	"fmt"

	"github.com/framez/backend/internal/config"
)

// ErrUnknownMode is returned by NewPublisher for unsupported realtime modes.
var ErrUnknownMode = errors.New("unknown realtime mode")

// NewPublisher selects how handlers publish changes. In local mode events go
// straight to hub. In postgres mode they are sent with NOTIFY and reach hub
// through a Listener, which lets several replicas share one change feed.
func NewPublisher(cfg config.RealtimeConfig, exec Execer, hub *Hub) (Publisher, error) {
	switch cfg.Mode {
	case config.RealtimeModeLocal:
		return hub, nil
	case config.RealtimeModePostgres:
		if exec == nil {
			return nil, errors.New("realtime: postgres mode requires a database")
		}
		return NewPGNotifier(exec, cfg.Channel), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}
