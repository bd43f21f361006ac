// Package host implements ports.Host against the local Linux machine.
package host

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"gopkg.in/ini.v1"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Local reads facts from the running kernel and filesystem.
type Local struct {
	runner        ports.CommandRunner
	osReleasePath string
	meminfoPath   string
}

// New creates a Local host. The runner is used for socket listings.
func New(runner ports.CommandRunner) *Local {
	return &Local{
		runner:        runner,
		osReleasePath: "/etc/os-release",
		meminfoPath:   "/proc/meminfo",
	}
}

// OSRelease parses /etc/os-release, which is a flat KEY="value" file and
// reads cleanly as the default section of an ini document.
func (h *Local) OSRelease(_ context.Context) (ports.OSRelease, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true, Insensitive: false}, h.osReleasePath)
	if err != nil {
		return ports.OSRelease{}, fmt.Errorf("read %s: %w", h.osReleasePath, err)
	}
	section := cfg.Section(ini.DefaultSection)
	return ports.OSRelease{
		ID:        strings.ToLower(section.Key("ID").String()),
		IDLike:    strings.Fields(strings.ToLower(section.Key("ID_LIKE").String())),
		VersionID: section.Key("VERSION_ID").String(),
		Pretty:    section.Key("PRETTY_NAME").String(),
	}, nil
}

func (h *Local) Arch() string { return runtime.GOARCH }

func (h *Local) EUID() int { return os.Geteuid() }

// TotalMemoryMB reads MemTotal from /proc/meminfo.
func (h *Local) TotalMemoryMB(_ context.Context) (int64, error) {
	data, err := os.ReadFile(h.meminfoPath)
	if err != nil {
		return 0, err
	}
	return parseMemTotal(data)
}

func parseMemTotal(data []byte) (int64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemTotal %q: %w", fields[1], err)
		}
		return kb / 1024, nil
	}
	return 0, errors.New("MemTotal not found in meminfo")
}

// FreeDiskGB reports space available to unprivileged users on the
// filesystem holding path.
func (h *Local) FreeDiskGB(_ context.Context, path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail * uint64(st.Bsize) / (1 << 30)), nil
}

// Listening lists TCP and UDP listening sockets via ss.
func (h *Local) Listening(ctx context.Context) ([]ports.Socket, error) {
	res, err := h.runner.Run(ctx, "ss", "-H", "-lntu")
	if err != nil {
		return nil, fmt.Errorf("ss: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("ss exited %d: %s", res.ExitCode, res.PrimaryOutput())
	}
	return parseSockets(res.Stdout), nil
}

func parseSockets(output string) []ports.Socket {
	var sockets []ports.Socket
	seen := map[ports.Socket]bool{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		local := fields[4]
		i := strings.LastIndexByte(local, ':')
		if i < 0 {
			continue
		}
		port, err := strconv.Atoi(local[i+1:])
		if err != nil {
			continue
		}
		s := ports.Socket{Proto: fields[0], Port: port}
		if !seen[s] {
			seen[s] = true
			sockets = append(sockets, s)
		}
	}
	return sockets
}

func (h *Local) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (h *Local) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data next to path and renames it into place, so a crash
// never leaves a truncated file. An existing file keeps its mode.
func (h *Local) WriteFile(path string, data []byte, perm uint32) error {
	mode := fs.FileMode(perm)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".dialprov-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

var _ ports.Host = (*Local)(nil)
