package claim

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cairn/internal/adapters/settings"
	"go.trai.ch/cairn/internal/core/ports"
)

// NodeID is the unique identifier for the install locker Graft node.
const NodeID graft.ID = "adapter.claim_table"

func init() {
	graft.Register(graft.Node[ports.InstallLocker]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{settings.NodeID},
		Run: func(ctx context.Context) (ports.InstallLocker, error) {
			cfg, err := graft.Dep[*settings.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewTable(cfg.ClaimDir), nil
		},
	})
}
