package repo

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cairn/internal/adapters/settings"
	"go.trai.ch/cairn/internal/core/ports"
)

// NodeID is the unique identifier for the base repository Graft node.
const NodeID graft.ID = "adapter.repo_base"

func init() {
	graft.Register(graft.Node[ports.Repository]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID},
		Run: func(ctx context.Context) (ports.Repository, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewFSRepository(cfg.RepoDir, BaseNamespace), nil
		},
	})
}
