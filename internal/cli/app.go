package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/rpggio/feedsync/internal/config"
	"github.com/rpggio/feedsync/internal/devicedb"
	"github.com/rpggio/feedsync/internal/devicelog"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/engine"
	"github.com/rpggio/feedsync/internal/remote"
	"github.com/rpggio/feedsync/internal/sqlite"
)

// App is one wired sync domain: the timeline database, its lock, the device
// sources and the controller.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	DB         *sqlite.DB
	Timeline   *timeline.Service
	Watermarks *sqlite.WatermarkRepository
	Controller *engine.Controller

	lock      *flock.Flock
	deviceDBs []*devicedb.DB
}

// NewApp opens the timeline database, takes the engine lock and wires the
// controller. Close releases everything.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	app := &App{Config: cfg, Logger: logger}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("preparing database path: %w", err)
	}
	lock, err := sqlite.Lock(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	app.lock = lock

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.DB = db
	if err := db.RunMigrations(); err != nil {
		app.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	timelineRepo := sqlite.NewTimelineRepository(db, int64(cfg.Sync.MaxTimelineRows))
	app.Watermarks = sqlite.NewWatermarkRepository(db)
	contacts := sqlite.NewContactRepository(db)
	app.Timeline = timeline.NewService(timelineRepo, logger)

	readers := &devicelog.Readers{Deps: devicelog.Deps{
		Timeline:   timelineRepo,
		Watermarks: app.Watermarks,
		Contacts:   contacts,
		Policy: devicelog.Policy{
			PageSize:  cfg.Sync.PageSize,
			BatchSize: cfg.Sync.BatchSize,
			MaxPages:  cfg.Sync.MaxPages,
		},
		Location:       time.Local,
		DescriptionCap: cfg.Sync.DescriptionCap,
		Logger:         logger.With("component", "devicelog"),
	}}
	if cfg.Device.CallLogDB != "" {
		calls, err := app.openDevice(cfg.Device.CallLogDB)
		if err != nil {
			app.Close()
			return nil, err
		}
		readers.Calls = devicedb.NewCallLog(calls)
	}
	if cfg.Device.MessageLogDB != "" {
		messages, err := app.openDevice(cfg.Device.MessageLogDB)
		if err != nil {
			app.Close()
			return nil, err
		}
		readers.SMS = devicedb.NewSMS(messages)
		readers.MMS = devicedb.NewMMS(messages)
	}

	httpClient := &http.Client{Timeout: cfg.Remote.Timeout}
	fetcher := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, httpClient, logger.With("component", "remote"))

	app.Controller = engine.NewController(engine.Config{
		FirstPageSize:  cfg.Remote.FirstPageSize,
		OlderWindow:    cfg.Remote.OlderWindow,
		RemoteTimeout:  cfg.Remote.Timeout,
		NotReadyRetry:  cfg.Sync.NotReadyRetry,
		DescriptionCap: cfg.Sync.DescriptionCap,
		Location:       time.Local,
	}, engine.Deps{
		Timeline:     timelineRepo,
		Watermarks:   app.Watermarks,
		Fetcher:      fetcher,
		Readers:      readers,
		Connectivity: engine.NewToggle(cfg.Remote.BaseURL != ""),
		Readiness:    engine.NewToggle(true),
		Logger:       logger.With("component", "engine"),
	})
	return app, nil
}

func (a *App) openDevice(path string) (*devicedb.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving device database %s: %w", path, err)
	}
	for _, db := range a.deviceDBs {
		if db.Path() == abs {
			return db, nil
		}
	}
	db, err := devicedb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening device database %s: %w", path, err)
	}
	a.deviceDBs = append(a.deviceDBs, db)
	return db, nil
}

// DevicePaths maps each configured device log to its database file.
func (a *App) DevicePaths() map[engine.DeviceKind]string {
	paths := make(map[engine.DeviceKind]string)
	if a.Config.Device.CallLogDB != "" {
		paths[engine.DeviceCallLog] = a.Config.Device.CallLogDB
	}
	if a.Config.Device.MessageLogDB != "" {
		paths[engine.DeviceMessageLog] = a.Config.Device.MessageLogDB
	}
	return paths
}

// Close releases the databases and the engine lock.
func (a *App) Close() error {
	var errs []error
	for _, db := range a.deviceDBs {
		errs = append(errs, db.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}
	return errors.Join(errs...)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
