package ports

import "context"

// PackageManager installs and queries OS packages.
type PackageManager interface {
	// Name identifies the backend (apt, dnf).
	Name() string
	// Installed reports whether name is installed. An unknown package is
	// reported as not installed.
	Installed(ctx context.Context, name string) (bool, error)
	// Install installs every named package. Installing an already installed
	// package must be harmless.
	Install(ctx context.Context, names ...string) error
}

// ServiceManager controls supervised services. Implementations isolate the
// parsing of the supervisor's text output.
type ServiceManager interface {
	IsActive(ctx context.Context, unit string) (bool, error)
	IsEnabled(ctx context.Context, unit string) (bool, error)
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
}
