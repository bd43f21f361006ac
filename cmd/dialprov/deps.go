package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"

	"github.com/alexisbeaulieu97/dialprov/internal/adapters/command"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/crontab"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/host"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/httpcheck"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/pkgmgr"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/redisq"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/route"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/sqlstore"
	"github.com/alexisbeaulieu97/dialprov/internal/adapters/systemd"
	"github.com/alexisbeaulieu97/dialprov/internal/config"
	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/provision"
)

// buildDeps wires the real adapters for the local host. The returned func
// releases the database and queue clients.
func buildDeps(ctx context.Context, profile *config.Profile, log *logger.Logger) (provision.Deps, func(), error) {
	runner := command.NewRunner(log.With("component", "command"))
	if log.DebugEnabled() {
		runner = runner.Streaming(os.Stderr)
	}
	local := host.New(runner)

	store, err := openStore(profile.Database)
	if err != nil {
		return provision.Deps{}, nil, err
	}
	closers := []func() error{store.Close}

	deps := provision.Deps{
		Host:     local,
		Packages: detectPackages(ctx, local, runner, log),
		Services: systemd.New(runner),
		Store:    store,
		Crontab:  crontab.New(runner, profile.Cron.User),
		HTTP:     httpcheck.New(),
		Router:   route.New(runner),
		Runner:   runner,
		Logger:   log,
	}
	if r := profile.SelfTest.Redis; r.Address != "" {
		queue := redisq.New(r.Address, r.Password, r.DB)
		deps.Queue = queue
		closers = append(closers, queue.Close)
	}

	return deps, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Error(err, "close adapter")
			}
		}
	}, nil
}

// detectPackages picks apt or dnf from os-release. An unknown platform
// falls back to dnf; preflight rejects such hosts before any install.
func detectPackages(ctx context.Context, h ports.Host, runner ports.CommandRunner, log *logger.Logger) ports.PackageManager {
	release, err := h.OSRelease(ctx)
	if err == nil {
		pm, detectErr := pkgmgr.Detect(release, runner)
		if detectErr == nil {
			return pm
		}
		err = detectErr
	}
	log.WithFields(map[string]any{"error": err.Error()}).Debug("package manager not detected, assuming dnf")
	return pkgmgr.NewDnf(runner)
}

func openStore(db config.Database) (*sqlstore.Store, error) {
	dsn := db.DSN
	if dsn == "" {
		if db.Driver != "mysql" {
			return nil, errors.New("database.dsn is required for driver " + db.Driver)
		}
		connector, err := mysql.NewConnector(sqlstore.MySQLConfig(db.User, db.Password, db.Socket, db.Address, db.Name))
		if err != nil {
			return nil, fmt.Errorf("database connector: %w", err)
		}
		return sqlstore.OpenConnector(connector), nil
	}
	return sqlstore.Open(db.Driver, dsn)
}
