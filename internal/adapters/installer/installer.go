// Package installer implements the build collaborator on the local
// filesystem. Every concrete spec installs into its own prefix under the
// store root, keyed by content hash, with a JSON receipt marking a
// completed install.
package installer

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/zerr"
)

const receiptFile = ".cairn-receipt.json"

// receipt is written into a prefix after a successful install. A prefix
// without a receipt is a partial install and treated as absent.
type receipt struct {
	Spec        string    `json:"spec"`
	Hash        string    `json:"hash"`
	InstalledAt time.Time `json:"installed_at"`
}

// BuildHook runs the actual build inside a staged prefix. It is invoked
// with the concrete spec, the stage directory and the install prefix.
type BuildHook func(ctx context.Context, spec *domain.Spec, stage, prefix string) error

// Store installs specs into per-hash prefixes under root.
type Store struct {
	root   string
	logger ports.Logger
	build  BuildHook
}

// New creates a store rooted at root. A nil hook installs metadata only,
// which is enough for environments that track rather than compile.
func New(root string, logger ports.Logger, hook BuildHook) *Store {
	if hook == nil {
		hook = func(context.Context, *domain.Spec, string, string) error { return nil }
	}
	return &Store{root: root, logger: logger, build: hook}
}

// NewExecHook returns a BuildHook that runs the given command inside the
// stage directory with CAIRN_SPEC, CAIRN_STAGE and CAIRN_PREFIX exported.
func NewExecHook(command string, args ...string) BuildHook {
	return func(ctx context.Context, spec *domain.Spec, stage, prefix string) error {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Dir = stage
		cmd.Env = append(os.Environ(),
			"CAIRN_SPEC="+spec.String(),
			"CAIRN_STAGE="+stage,
			"CAIRN_PREFIX="+prefix,
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			berr := zerr.Wrap(domain.ErrBuildFailure, err.Error())
			berr = zerr.With(berr, "spec", spec.String())
			return zerr.With(berr, "output", string(out))
		}
		return nil
	}
}

// Prefix returns the install prefix for a concrete spec.
func (s *Store) Prefix(spec *domain.Spec) (string, error) {
	hash, err := spec.ContentHash()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, spec.Name.String()+"-"+spec.Version+"-"+hash), nil
}

// IsInstalled reports whether the spec's prefix holds a receipt.
func (s *Store) IsInstalled(spec *domain.Spec) bool {
	prefix, err := s.Prefix(spec)
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(prefix, receiptFile))
	return err == nil
}

// Stage prepares the stage directory for a spec without building.
func (s *Store) Stage(_ context.Context, spec *domain.Spec) error {
	_, err := s.stageDir(spec)
	return err
}

// Install builds the spec into its prefix and writes the receipt.
func (s *Store) Install(ctx context.Context, spec *domain.Spec) error {
	if s.IsInstalled(spec) {
		return nil
	}

	prefix, err := s.Prefix(spec)
	if err != nil {
		return err
	}
	stage, err := s.stageDir(spec)
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(stage) }()

	if err := os.MkdirAll(prefix, 0o750); err != nil {
		return zerr.Wrap(err, "creating install prefix")
	}

	s.logger.Info("installing " + spec.String())
	if err := s.build(ctx, spec, stage, prefix); err != nil {
		// Leave no partial prefix behind.
		_ = os.RemoveAll(prefix)
		return err
	}

	return s.writeReceipt(spec, prefix)
}

// Uninstall removes the spec's prefix.
func (s *Store) Uninstall(_ context.Context, spec *domain.Spec) error {
	prefix, err := s.Prefix(spec)
	if err != nil {
		return err
	}
	if _, err := os.Stat(prefix); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(prefix); err != nil {
		return zerr.Wrap(err, "removing install prefix")
	}
	return nil
}

func (s *Store) stageDir(spec *domain.Spec) (string, error) {
	hash, err := spec.ContentHash()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, ".stage", hash)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", zerr.Wrap(err, "creating stage directory")
	}
	return dir, nil
}

func (s *Store) writeReceipt(spec *domain.Spec, prefix string) error {
	hash, err := spec.ContentHash()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(receipt{
		Spec:        spec.String(),
		Hash:        hash,
		InstalledAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "encoding receipt")
	}
	if err := os.WriteFile(filepath.Join(prefix, receiptFile), data, 0o600); err != nil {
		return zerr.Wrap(err, "writing receipt")
	}
	return nil
}
