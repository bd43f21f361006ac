package ports

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"sync"
	"time"
)

// MockCommandRunner returns canned results keyed by command line and
// records every call.
type MockCommandRunner struct {
	mu      sync.Mutex
	results map[string]CommandResult
	errs    map[string]error
	calls   []CommandCall
}

// NewMockCommandRunner creates an empty MockCommandRunner.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{results: map[string]CommandResult{}, errs: map[string]error{}}
}

func commandKey(command string, args []string) string {
	return command + " " + strings.Join(args, " ")
}

// AddResult registers the result for an exact command line.
func (m *MockCommandRunner) AddResult(command string, args []string, result CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[commandKey(command, args)] = result
}

// AddError registers an error for an exact command line.
func (m *MockCommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[commandKey(command, args)] = err
}

// Run implements CommandRunner.
func (m *MockCommandRunner) Run(_ context.Context, command string, args ...string) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, CommandCall{Command: command, Args: append([]string(nil), args...)})
	key := commandKey(command, args)
	if err, ok := m.errs[key]; ok {
		return CommandResult{}, err
	}
	if res, ok := m.results[key]; ok {
		return res, nil
	}
	return CommandResult{}, fmt.Errorf("mock: no result registered for %q", key)
}

// Calls returns the recorded invocations in order.
func (m *MockCommandRunner) Calls() []CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandCall(nil), m.calls...)
}

// FakeServices is an in-memory ServiceManager.
type FakeServices struct {
	mu       sync.Mutex
	Active   map[string]bool
	Enabled  map[string]bool
	Restarts map[string]int
	// RestartLeavesInactive simulates a unit that fails to come back.
	RestartLeavesInactive map[string]bool
}

// NewFakeServices creates a FakeServices with the given units active.
func NewFakeServices(active ...string) *FakeServices {
	f := &FakeServices{
		Active:                map[string]bool{},
		Enabled:               map[string]bool{},
		Restarts:              map[string]int{},
		RestartLeavesInactive: map[string]bool{},
	}
	for _, u := range active {
		f.Active[u] = true
		f.Enabled[u] = true
	}
	return f
}

func (f *FakeServices) IsActive(_ context.Context, unit string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Active[unit], nil
}

func (f *FakeServices) IsEnabled(_ context.Context, unit string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Enabled[unit], nil
}

func (f *FakeServices) Start(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Active[unit] = true
	return nil
}

func (f *FakeServices) Stop(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Active[unit] = false
	return nil
}

func (f *FakeServices) Restart(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Restarts[unit]++
	f.Active[unit] = !f.RestartLeavesInactive[unit]
	return nil
}

func (f *FakeServices) Enable(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled[unit] = true
	return nil
}

// RestartCount returns how often unit was restarted.
func (f *FakeServices) RestartCount(unit string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Restarts[unit]
}

// FakePackages is an in-memory PackageManager.
type FakePackages struct {
	mu        sync.Mutex
	installed map[string]bool
	Installs  [][]string
	// Broken packages are accepted by Install but never become installed.
	Broken map[string]bool
}

// NewFakePackages creates a FakePackages with the given packages installed.
func NewFakePackages(installed ...string) *FakePackages {
	f := &FakePackages{installed: map[string]bool{}, Broken: map[string]bool{}}
	for _, p := range installed {
		f.installed[p] = true
	}
	return f
}

func (f *FakePackages) Name() string { return "fake" }

func (f *FakePackages) Installed(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[name], nil
}

func (f *FakePackages) Install(_ context.Context, names ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Installs = append(f.Installs, append([]string(nil), names...))
	for _, n := range names {
		if !f.Broken[n] {
			f.installed[n] = true
		}
	}
	return nil
}

// FakeScheduler is an in-memory SchedulerTable.
type FakeScheduler struct {
	mu       sync.Mutex
	Content  []byte
	Replaces int
	ReadErr  error
}

func (f *FakeScheduler) Read(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return append([]byte(nil), f.Content...), nil
}

func (f *FakeScheduler) Replace(_ context.Context, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replaces++
	f.Content = append([]byte(nil), content...)
	return nil
}

// FakeHTTP serves canned responses per URL.
type FakeHTTP struct {
	Responses map[string]FakeResponse
}

// FakeResponse is one canned HTTP answer.
type FakeResponse struct {
	Status int
	Body   string
	Err    error
	Delay  time.Duration
}

func (f *FakeHTTP) Get(ctx context.Context, url string, timeout time.Duration) (int, string, error) {
	resp, ok := f.Responses[url]
	if !ok {
		return 0, "", fmt.Errorf("connect %s: connection refused", url)
	}
	if resp.Delay > 0 {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		select {
		case <-time.After(resp.Delay):
		case <-reqCtx.Done():
			return 0, "", reqCtx.Err()
		}
	}
	return resp.Status, resp.Body, resp.Err
}

// FakeRouter returns a fixed source address.
type FakeRouter struct {
	mu   sync.Mutex
	Addr netip.Addr
	Err  error
}

func (f *FakeRouter) SourceAddress(context.Context, string) (netip.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Addr, f.Err
}

// FakeQueue is an in-memory QueueProber.
type FakeQueue struct {
	PingErr error
	Lengths map[string]int64
}

func (f *FakeQueue) Ping(context.Context) error { return f.PingErr }

func (f *FakeQueue) QueueLength(_ context.Context, key string) (int64, error) {
	if f.PingErr != nil {
		return 0, f.PingErr
	}
	return f.Lengths[key], nil
}

// FakeHost is an in-memory Host with a map-backed filesystem.
type FakeHost struct {
	mu         sync.Mutex
	Release    OSRelease
	ReleaseErr error
	Machine    string
	UID        int
	MemoryMB   int64
	DiskGB     int64
	Sockets    []Socket
	Files      map[string][]byte
	Writes     map[string]int
}

// NewFakeHost returns a host satisfying the default profile.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		Release:  OSRelease{ID: "almalinux", IDLike: []string{"rhel", "centos", "fedora"}, VersionID: "9.4", Pretty: "AlmaLinux 9.4"},
		Machine:  "amd64",
		MemoryMB: 8192,
		DiskGB:   80,
		Files:    map[string][]byte{},
		Writes:   map[string]int{},
	}
}

func (h *FakeHost) OSRelease(context.Context) (OSRelease, error) { return h.Release, h.ReleaseErr }

func (h *FakeHost) Arch() string { return h.Machine }

func (h *FakeHost) EUID() int { return h.UID }

func (h *FakeHost) TotalMemoryMB(context.Context) (int64, error) { return h.MemoryMB, nil }

func (h *FakeHost) FreeDiskGB(context.Context, string) (int64, error) { return h.DiskGB, nil }

func (h *FakeHost) Listening(context.Context) ([]Socket, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Socket(nil), h.Sockets...), nil
}

func (h *FakeHost) FileExists(path string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.Files[path]
	return ok, nil
}

func (h *FakeHost) ReadFile(path string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.Files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (h *FakeHost) WriteFile(path string, data []byte, _ uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if path == "" {
		return errors.New("empty path")
	}
	h.Files[path] = append([]byte(nil), data...)
	h.Writes[path]++
	return nil
}

// WriteCount returns how many times path was written.
func (h *FakeHost) WriteCount(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Writes[path]
}

var (
	_ CommandRunner  = (*MockCommandRunner)(nil)
	_ ServiceManager = (*FakeServices)(nil)
	_ PackageManager = (*FakePackages)(nil)
	_ SchedulerTable = (*FakeScheduler)(nil)
	_ HTTPProber     = (*FakeHTTP)(nil)
	_ Router         = (*FakeRouter)(nil)
	_ QueueProber    = (*FakeQueue)(nil)
	_ Host           = (*FakeHost)(nil)
)
