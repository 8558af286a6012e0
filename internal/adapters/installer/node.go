package installer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cairn/internal/adapters/logger"
	"go.trai.ch/cairn/internal/adapters/settings"
	"go.trai.ch/cairn/internal/core/ports"
)

// NodeID is the unique identifier for the installer Graft node.
const NodeID graft.ID = "adapter.installer"

func init() {
	graft.Register(graft.Node[ports.Installer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Installer, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(cfg.InstallRoot, log, nil), nil
		},
	})
}
