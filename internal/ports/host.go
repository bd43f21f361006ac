package ports

import "context"

// OSRelease holds the fields of /etc/os-release dialprov cares about.
type OSRelease struct {
	ID        string
	IDLike    []string
	VersionID string
	Pretty    string
}

// Socket is one listening socket.
type Socket struct {
	Proto string
	Port  int
}

// Host exposes read-only facts about the machine itself.
type Host interface {
	OSRelease(ctx context.Context) (OSRelease, error)
	Arch() string
	EUID() int
	TotalMemoryMB(ctx context.Context) (int64, error)
	FreeDiskGB(ctx context.Context, path string) (int64, error)
	Listening(ctx context.Context) ([]Socket, error)
	FileExists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces path atomically (temp file + rename), keeping
	// perm for new files and the existing mode otherwise.
	WriteFile(path string, data []byte, perm uint32) error
}
