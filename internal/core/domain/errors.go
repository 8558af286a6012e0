package domain

import "go.trai.ch/zerr"

var (
	// ErrIncompleteSpec is returned when a content hash is requested for a
	// spec that has not been concretized.
	ErrIncompleteSpec = zerr.New("spec is not concrete")

	// ErrInvalidSpecSyntax is returned when a spec string cannot be parsed.
	ErrInvalidSpecSyntax = zerr.New("invalid spec syntax")

	// ErrConcretizationConflict is returned when constraints on a package
	// cannot be unified into a single concrete candidate.
	ErrConcretizationConflict = zerr.New("conflicting constraints")

	// ErrConfigFormat is returned when a configuration file violates the
	// manifest or scope schema.
	ErrConfigFormat = zerr.New("invalid configuration")

	// ErrUnknownEnvironment is returned for operations on an environment
	// name that does not exist.
	ErrUnknownEnvironment = zerr.New("no such environment")

	// ErrEnvironmentExists is returned when creating an environment whose
	// directory already exists.
	ErrEnvironmentExists = zerr.New("environment already exists")

	// ErrBuildFailure is returned when the build collaborator fails to
	// install a concrete spec. It carries the failing hash as metadata.
	ErrBuildFailure = zerr.New("install failed")

	// ErrDuplicateSpec is returned when adding a spec whose name is already
	// present in the environment's user specs.
	ErrDuplicateSpec = zerr.New("spec already in environment")

	// ErrSpecNotFound is returned when removing a spec that matches no
	// user spec.
	ErrSpecNotFound = zerr.New("spec not found in environment")

	// ErrPackageNotFound is returned by repositories for unknown packages.
	ErrPackageNotFound = zerr.New("package not found")

	// ErrLockfileVersion is returned when a lockfile declares a format
	// version this build does not understand.
	ErrLockfileVersion = zerr.New("unsupported lockfile version")

	// ErrInvalidLockfile is returned when lockfile content is internally
	// inconsistent.
	ErrInvalidLockfile = zerr.New("invalid lockfile")

	// ErrMissingDependency is returned when a spec references a dependency
	// hash that is not present in the closure.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when package recipes form a dependency
	// cycle.
	ErrCycleDetected = zerr.New("cycle detected")
)
