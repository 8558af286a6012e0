package env

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cairn/internal/adapters/claim"
	"go.trai.ch/cairn/internal/adapters/config"
	"go.trai.ch/cairn/internal/adapters/installer"
	"go.trai.ch/cairn/internal/adapters/logger"
	"go.trai.ch/cairn/internal/adapters/repo"
	"go.trai.ch/cairn/internal/adapters/settings"
	"go.trai.ch/cairn/internal/adapters/telemetry/progrock"
	"go.trai.ch/cairn/internal/core/ports"
)

// NodeID is the unique identifier for the environment manager Graft node.
const NodeID graft.ID = "engine.env_manager"

func init() {
	graft.Register(graft.Node[*Manager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			settings.NodeID,
			config.NodeID,
			repo.NodeID,
			installer.NodeID,
			claim.NodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Manager, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			loader, err := graft.Dep[*config.Loader](ctx)
			if err != nil {
				return nil, err
			}
			base, err := graft.Dep[ports.Repository](ctx)
			if err != nil {
				return nil, err
			}
			inst, err := graft.Dep[ports.Installer](ctx)
			if err != nil {
				return nil, err
			}
			locker, err := graft.Dep[ports.InstallLocker](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewManager(cfg.EnvRoot, loader, base, inst, locker, tracer, log), nil
		},
	})
}
