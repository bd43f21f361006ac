// Package summary renders the first-run summary an operator reads after
// provisioning: web endpoints, service endpoints and generated credentials.
package summary

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"text/template"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
)

// PasswordLength is the length of generated credentials.
const PasswordLength = 16

const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

const fileTemplate = `dialprov first-run summary
Generated: {{ .Generated }}
Server IP: {{ .Address }}

Admin URL: http://{{ .Address }}/vicidial/admin.php
Agent URL: http://{{ .Address }}/agc/vicidial.php
{{- if .OpsURL }}
Ops API: {{ .OpsURL }}
{{- end }}

Admin user: {{ .AdminUser }}
Admin password: {{ .AdminPassword }}
AMI endpoint: {{ .Address }}:5038
Database: {{ .Database }} on localhost
Database user: {{ .DBUser }}

Keep this file private. Passwords are not shown again; re-running
provisioning never regenerates them while this file exists.
`

// Credentials are generated once per host.
type Credentials struct {
	AdminUser     string
	AdminPassword string
}

// Data is the template input.
type Data struct {
	Generated     string
	Address       string
	OpsURL        string
	AdminUser     string
	AdminPassword string
	Database      string
	DBUser        string
}

// ApplyFunc installs freshly generated credentials (e.g. the admin web
// password row) before the summary is written.
type ApplyFunc func(ctx context.Context, creds Credentials) error

// Writer creates the summary file when it is absent.
type Writer struct {
	Host      ports.Host
	Path      string
	AdminUser string
	Database  string
	DBUser    string
	OpsURL    string
	Apply     ApplyFunc
	Logger    *logger.Logger
	now       func() time.Time
}

// GeneratePassword returns a random password drawn from an alphabet without
// look-alike characters.
func GeneratePassword(n int) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Render produces the summary text.
func Render(data Data) ([]byte, error) {
	tmpl, err := template.New("first-run").Parse(fileTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse summary template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	return buf.Bytes(), nil
}

// Write generates credentials, applies them and writes the file. It never
// overwrites an existing summary.
func (w *Writer) Write(ctx context.Context, address string) error {
	exists, err := w.Host.FileExists(w.Path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	password, err := GeneratePassword(PasswordLength)
	if err != nil {
		return err
	}
	creds := Credentials{AdminUser: w.AdminUser, AdminPassword: password}
	if w.Apply != nil {
		if err := w.Apply(ctx, creds); err != nil {
			return fmt.Errorf("apply credentials: %w", err)
		}
	}

	now := time.Now
	if w.now != nil {
		now = w.now
	}
	content, err := Render(Data{
		Generated:     now().UTC().Format(time.RFC3339),
		Address:       address,
		OpsURL:        w.OpsURL,
		AdminUser:     creds.AdminUser,
		AdminPassword: creds.AdminPassword,
		Database:      w.Database,
		DBUser:        w.DBUser,
	})
	if err != nil {
		return err
	}
	if err := w.Host.WriteFile(w.Path, content, 0o600); err != nil {
		return err
	}
	w.Logger.WithFields(map[string]any{"path": w.Path, "address": address}).Info("first-run summary written")
	return nil
}

// Stage ensures the summary exists, using the detected address from the
// run environment.
func (w *Writer) Stage(name string) engine.Stage {
	return engine.Stage{
		Name:        name,
		Description: "write the first-run summary",
		Probes:      []engine.Probe{probes.FileExists(w.Host, w.Path)},
		Guard:       engine.RequirePresent(probes.FileKey(w.Path)),
		Action: &engine.Action{Name: "write-summary", Fn: func(ctx context.Context, env, _ model.FactSet) error {
			address := env.Str(probes.IdentityKey)
			if address == "" {
				address = "127.0.0.1"
			}
			return w.Write(ctx, address)
		}},
	}
}
