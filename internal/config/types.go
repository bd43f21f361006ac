// Package config loads the provisioning profile: target platform limits,
// packages, services, database, cron jobs, identity targets and self-test
// endpoints. The profile is constant for the lifetime of the process.
package config

import (
	"regexp"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/cronset"
	"github.com/alexisbeaulieu97/dialprov/internal/identity"
)

// Profile is the full provisioning profile document.
type Profile struct {
	Name     string   `yaml:"name" validate:"required,min=1,max=100"`
	Target   Target   `yaml:"target"`
	Packages []string `yaml:"packages" validate:"required,min=1,dive,required"`
	Services Services `yaml:"services"`
	Ports    []Port   `yaml:"ports" validate:"omitempty,dive"`
	Database Database `yaml:"database"`
	Cron     Cron     `yaml:"cron"`
	Identity Identity `yaml:"identity"`
	Summary  Summary  `yaml:"summary"`
	SelfTest SelfTest `yaml:"selftest"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// Target describes the supported platform and its minimum resources.
type Target struct {
	OS          []string `yaml:"os" validate:"required,min=1,dive,required"`
	MinVersion  string   `yaml:"min_version" validate:"required,osversion"`
	Arch        []string `yaml:"arch" validate:"required,min=1,dive,oneof=amd64 arm64"`
	MinMemoryMB int64    `yaml:"min_memory_mb" validate:"required,min=1"`
	MinDiskGB   int64    `yaml:"min_disk_gb" validate:"required,min=1"`
	DiskPath    string   `yaml:"disk_path" validate:"required,startswith=/"`
}

// Services names the units the stack depends on.
type Services struct {
	Telephony string   `yaml:"telephony" validate:"required"`
	Database  string   `yaml:"database" validate:"required"`
	Web       string   `yaml:"web" validate:"required"`
	Enable    []string `yaml:"enable" validate:"omitempty,dive,required"`
	Optional  []string `yaml:"optional" validate:"omitempty,dive,required"`
}

// Port is a socket the stack must own once installed.
type Port struct {
	Port    int    `yaml:"port" validate:"required,min=1,max=65535"`
	Proto   string `yaml:"proto" validate:"required,oneof=tcp udp"`
	Service string `yaml:"service" validate:"required"`
}

// Database describes the relational store and its schema loader.
type Database struct {
	Driver      string   `yaml:"driver" validate:"required,oneof=mysql sqlite3"`
	DSN         string   `yaml:"dsn,omitempty"`
	User        string   `yaml:"user" validate:"required_without=DSN"`
	Password    string   `yaml:"password,omitempty"`
	Socket      string   `yaml:"socket,omitempty"`
	Address     string   `yaml:"address,omitempty" validate:"omitempty,hostname_port"`
	Name        string   `yaml:"name" validate:"required,sqlident"`
	SchemaTable string   `yaml:"schema_table" validate:"required,sqlident"`
	Loader      []string `yaml:"loader" validate:"required,min=1,dive,required"`
	ServerID    string   `yaml:"server_id" validate:"required"`
}

// Cron is the desired scheduler set.
type Cron struct {
	User string    `yaml:"user,omitempty"`
	Jobs []CronJob `yaml:"jobs" validate:"required,min=1,dive"`
}

// CronJob is one desired scheduler entry.
type CronJob struct {
	ID       string `yaml:"id" validate:"required,stage_id"`
	Schedule string `yaml:"schedule" validate:"required,cronspec"`
	Command  string `yaml:"command" validate:"required"`
	Match    string `yaml:"match,omitempty"`
	Tool     string `yaml:"tool,omitempty"`
}

// Identity lists where the host address is cached.
type Identity struct {
	ProbeDestination string         `yaml:"probe_destination" validate:"required,ip4_addr"`
	Primary          ColumnTarget   `yaml:"primary"`
	Columns          []ColumnTarget `yaml:"columns" validate:"omitempty,dive"`
	Files            []FileTarget   `yaml:"files" validate:"omitempty,dive"`
	RestartWait      time.Duration  `yaml:"restart_wait,omitempty"`
}

// ColumnTarget is a table.column caching the address.
type ColumnTarget struct {
	Table        string `yaml:"table" validate:"required,sqlident"`
	Column       string `yaml:"column" validate:"required,sqlident"`
	FilterColumn string `yaml:"filter_column,omitempty" validate:"omitempty,sqlident"`
	FilterValue  string `yaml:"filter_value,omitempty" validate:"required_with=FilterColumn"`
}

// FileTarget is a text file whose pattern captures the address once.
type FileTarget struct {
	Path    string `yaml:"path" validate:"required,startswith=/"`
	Pattern string `yaml:"pattern" validate:"required,regexpone"`
}

// Summary configures the first-run summary artifact.
type Summary struct {
	Path      string `yaml:"path" validate:"required,startswith=/"`
	AdminUser string `yaml:"admin_user" validate:"required"`
	DBUser    string `yaml:"db_user" validate:"required"`
	OpsURL    string `yaml:"ops_url,omitempty" validate:"omitempty,url"`
}

// SelfTest lists the endpoints the verifier checks.
type SelfTest struct {
	Parallel      int         `yaml:"parallel,omitempty" validate:"omitempty,min=1,max=32"`
	Modules       []string    `yaml:"modules" validate:"omitempty,dive,required"`
	WebURL        string      `yaml:"web_url" validate:"required,url"`
	AdminURL      string      `yaml:"admin_url" validate:"required,url"`
	AdminMarker   string      `yaml:"admin_marker,omitempty"`
	OpsHealthURL  string      `yaml:"ops_health_url,omitempty" validate:"omitempty,url"`
	OpsHealthBody string      `yaml:"ops_health_body,omitempty"`
	Redis         Redis       `yaml:"redis"`
	Files         []FileCheck `yaml:"files,omitempty" validate:"omitempty,dive"`
}

// FileCheck asserts that a configuration file on the host matches Pattern.
type FileCheck struct {
	Name    string `yaml:"name" validate:"required"`
	Path    string `yaml:"path" validate:"required,startswith=/"`
	Pattern string `yaml:"pattern" validate:"required,pattern"`
}

// Redis is the ops stack queue.
type Redis struct {
	Address  string `yaml:"address,omitempty" validate:"omitempty,hostname_port"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"min=0,max=15"`
	Queue    string `yaml:"queue,omitempty" validate:"required_with=Address"`
	MaxQueue int64  `yaml:"max_queue,omitempty" validate:"min=0"`
}

// Timeouts bound latency-sensitive probes.
type Timeouts struct {
	HTTP    time.Duration `yaml:"http,omitempty"`
	Command time.Duration `yaml:"command,omitempty"`
	Check   time.Duration `yaml:"check,omitempty"`
}

// Defaults applied after decoding.
const (
	DefaultHTTPTimeout    = 10 * time.Second
	DefaultCommandTimeout = 15 * time.Second
	DefaultCheckTimeout   = 30 * time.Second
	DefaultRestartWait    = 30 * time.Second
)

func (p *Profile) applyDefaults() {
	if p.Timeouts.HTTP <= 0 {
		p.Timeouts.HTTP = DefaultHTTPTimeout
	}
	if p.Timeouts.Command <= 0 {
		p.Timeouts.Command = DefaultCommandTimeout
	}
	if p.Timeouts.Check <= 0 {
		p.Timeouts.Check = DefaultCheckTimeout
	}
	if p.Identity.RestartWait <= 0 {
		p.Identity.RestartWait = DefaultRestartWait
	}
	if p.SelfTest.Parallel == 0 {
		p.SelfTest.Parallel = 1
	}
	if p.SelfTest.AdminMarker == "" {
		p.SelfTest.AdminMarker = "VICIDIAL"
	}
	if p.SelfTest.OpsHealthBody == "" {
		p.SelfTest.OpsHealthBody = `"api":"ok"`
	}
}

// CronJobs converts the desired set for the reconciler.
func (p *Profile) CronJobs() []cronset.JobSpec {
	jobs := make([]cronset.JobSpec, len(p.Cron.Jobs))
	for i, j := range p.Cron.Jobs {
		jobs[i] = cronset.JobSpec{ID: j.ID, Schedule: j.Schedule, Command: j.Command, Match: j.Match, Tool: j.Tool}
	}
	return jobs
}

// IdentityPrimary returns the source-of-truth column.
func (p *Profile) IdentityPrimary() identity.ColumnTarget {
	return p.Identity.Primary.target()
}

// IdentityColumns returns the secondary column targets.
func (p *Profile) IdentityColumns() []identity.ColumnTarget {
	out := make([]identity.ColumnTarget, len(p.Identity.Columns))
	for i, c := range p.Identity.Columns {
		out[i] = c.target()
	}
	return out
}

// IdentityFiles compiles the file targets. Patterns are validated at load,
// so compilation cannot fail here.
func (p *Profile) IdentityFiles() []identity.FileTarget {
	out := make([]identity.FileTarget, len(p.Identity.Files))
	for i, f := range p.Identity.Files {
		out[i] = identity.FileTarget{Path: f.Path, Pattern: regexp.MustCompile(f.Pattern)}
	}
	return out
}

func (c ColumnTarget) target() identity.ColumnTarget {
	return identity.ColumnTarget{Table: c.Table, Column: c.Column, FilterCol: c.FilterColumn, FilterValue: c.FilterValue}
}
