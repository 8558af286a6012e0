package ports

import "context"

// InstallLocker serializes install attempts of the same content hash
// across environments and processes. Install is keyed by hash, not by
// environment, so two environments sharing a dependency must not
// double-build it.
//
//go:generate go run go.uber.org/mock/mockgen -source=locker.go -destination=mocks/mock_locker.go -package=mocks
type InstallLocker interface {
	// Acquire blocks until the per-hash claim is held or the context is
	// done. The returned release function must be called exactly once.
	Acquire(ctx context.Context, hash string) (release func(), err error)
}
