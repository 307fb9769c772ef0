// Package core wires the KamiAI components together from Settings and owns
// their lifecycle.
package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/backup/targets"
	"github.com/kamiai/kamiai/internal/buildinfo"
	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/devices"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/embedding/mobilenet"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/livefeed"
	"github.com/kamiai/kamiai/internal/logger"
	"github.com/kamiai/kamiai/internal/mqtt"
	"github.com/kamiai/kamiai/internal/notify"
	"github.com/kamiai/kamiai/internal/observability"
	"github.com/kamiai/kamiai/internal/observability/metrics"
	"github.com/kamiai/kamiai/internal/session"
	"github.com/kamiai/kamiai/internal/sysinfo"
	"github.com/kamiai/kamiai/internal/workspace"
)

const (
	backendTFLite = "tflite"
	backendGrid   = "grid"

	telemetryFlushTimeout = 2 * time.Second
)

// Options overrides parts of the wiring.
type Options struct {
	// Version is reported as the telemetry release and compared by update
	// checks.
	Version string
	// HTTPClient is used for update checks.
	HTTPClient *http.Client
	// Metrics defaults to a fresh private registry.
	Metrics *observability.Metrics
	// Loaders replace the extractor loaders derived from the vision settings.
	Loaders map[session.ModuleType]session.LoaderFunc
	// MQTTClient replaces the client built from the mqtt settings.
	MQTTClient mqtt.Client
	// NotifyProviders replace the shoutrrr provider built from the
	// notification settings.
	NotifyProviders []notify.Provider
	// Now defaults to time.Now.
	Now func() time.Time
}

// Core holds every long-lived component.
type Core struct {
	Settings  *conf.Settings
	Metrics   *observability.Metrics
	DB        *datastore.Manager
	Repo      *datastore.Store
	Stores    *appstate.Stores
	Sessions  *session.Manager
	Workspace *workspace.Workspace
	Feed      *livefeed.Feed
	Backup    *backup.Manager
	Scheduler *backup.Scheduler
	Devices   *devices.Registry
	SysInfo   *sysinfo.Collector
	// Notifier is nil when notifications are disabled.
	Notifier  *notify.Dispatcher

	mqttClient mqtt.Client
	updates    *buildinfo.UpdateChecker
	version    string
	log        logger.Logger

	// formatMu serializes factory resets.
	formatMu  sync.Mutex
	closeOnce sync.Once
}

// New builds the components described by settings. The returned Core must
// be closed.
func New(ctx context.Context, settings *conf.Settings, opts Options) (_ *Core, err error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("core").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Core{
		Settings: settings,
		Metrics:  opts.Metrics,
		log:      GetLogger(),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if settings.Telemetry.Enabled {
		if err := errors.InitSentry(settings.Telemetry.DSN, opts.Version); err != nil {
			c.log.Warn("telemetry disabled", logger.Error(err))
		}
	}

	if c.Metrics == nil {
		if c.Metrics, err = observability.NewMetrics(); err != nil {
			return nil, err
		}
	}

	if c.Notifier, err = newNotifier(settings.Notification, opts.NotifyProviders); err != nil {
		return nil, err
	}

	if c.DB, err = openDatabase(settings); err != nil {
		return nil, err
	}
	c.Repo = datastore.NewStore(c.DB, c.Metrics.Datastore)

	c.Stores = appstate.New(c.Repo, appstate.Options{Now: opts.Now})
	if err = c.Stores.Load(ctx); err != nil {
		return nil, err
	}

	loaders := opts.Loaders
	if loaders == nil {
		loaders = map[session.ModuleType]session.LoaderFunc{
			session.ModuleVision: visionLoader(settings),
		}
	}
	c.Sessions = session.NewManager(session.Options{
		Loaders:    loaders,
		Classifier: classifierOptions(settings.Vision),
		OnChange: func(st session.State) {
			c.log.Debug("session state changed",
				logger.String("module", string(st.ModuleType)),
				logger.String("status", string(st.Status)))
			switch st.Status {
			case session.StatusReady:
				c.Metrics.Vision.RecordModelLoad(string(st.ModuleType), nil)
			case session.StatusFailed:
				c.Metrics.Vision.RecordModelLoad(string(st.ModuleType), errors.NewStd(st.Error))
				c.Notifier.Notify(sessionNotification(st))
			}
		},
	})

	c.Workspace = workspace.New(c.Sessions, c.Repo, workspace.Options{
		KeepSamples:  settings.Vision.KeepSamples,
		Metrics:      c.Metrics.Vision,
		Achievements: c.Stores,
		Now:          opts.Now,
	})

	var sinks []livefeed.Sink
	if c.mqttClient, err = newMQTTClient(settings.MQTT, opts.MQTTClient, c.Metrics.MQTT); err != nil {
		return nil, err
	}
	if c.mqttClient != nil {
		topic := settings.MQTT.Topic
		if topic == "" {
			topic = mqtt.DefaultTopic
		}
		sinks = append(sinks, mqtt.NewPublisher(c.mqttClient, topic))
	}
	c.Feed = livefeed.New(c.Workspace, c.Sessions, livefeed.Options{
		FPS:             settings.Vision.FPS,
		CaptureInterval: settings.Vision.CaptureInterval,
		Metrics:         c.Metrics.Vision,
		Sinks:           sinks,
	})

	if c.Backup, err = newBackupManager(ctx, settings, c, opts.Now); err != nil {
		return nil, err
	}
	interval := backup.IntervalManual
	if settings.Backup.Auto.Enabled {
		if interval, err = backup.ParseInterval(settings.Backup.Auto.Interval); err != nil {
			return nil, err
		}
	}
	c.Scheduler = backup.NewScheduler(c.Backup, interval)

	c.Devices = devices.NewRegistry(settings.IoT.DeviceTTL)
	c.SysInfo = sysinfo.NewCollector()
	c.version = opts.Version
	c.updates = &buildinfo.UpdateChecker{
		VersionURL:  settings.Update.VersionURL,
		DownloadURL: settings.Update.DownloadURL,
		Timeout:     settings.Update.Timeout,
		Client:      opts.HTTPClient,
	}

	c.log.Info("core initialized",
		logger.String("node", settings.Main.Name),
		logger.String("backend", settings.Vision.Backend),
		logger.String("database", c.DB.Path()))
	return c, nil
}

// openDatabase opens the configured driver; an empty driver means sqlite.
func openDatabase(settings *conf.Settings) (*datastore.Manager, error) {
	st := settings.Storage
	if st.Driver == datastore.DialectMySQL {
		return datastore.NewMySQLManager(datastore.MySQLConfig{
			Host:               st.MySQL.Host,
			Port:               st.MySQL.Port,
			Username:           st.MySQL.Username,
			Password:           st.MySQL.Password,
			Database:           st.MySQL.Database,
			SlowQueryThreshold: st.SlowQueryThreshold,
		})
	}
	return datastore.NewSQLiteManager(datastore.Config{
		Path:               storagePath(settings),
		SlowQueryThreshold: st.SlowQueryThreshold,
	})
}

func storagePath(settings *conf.Settings) string {
	if settings.Storage.Path == ":memory:" {
		return settings.Storage.Path
	}
	return settings.ResolvePath(settings.Storage.Path)
}

func classifierOptions(v conf.VisionSettings) classifier.Options {
	opts := classifier.DefaultOptions()
	if v.K > 0 {
		opts.K = v.K
	}
	if v.Metric != "" {
		opts.Metric = classifier.Metric(v.Metric)
	}
	return opts
}

// visionLoader returns the extractor loader for the configured backend.
func visionLoader(settings *conf.Settings) session.LoaderFunc {
	v := settings.Vision
	return func(ctx context.Context) (embedding.Extractor, error) {
		if v.Backend == backendGrid {
			return embedding.NewGridExtractor(v.GridSize), nil
		}
		ex, err := mobilenet.New(ctx, mobilenet.Options{
			ModelPath: settings.ResolvePath(v.ModelPath),
			Threads:   v.Threads,
		})
		if err != nil {
			return nil, err
		}
		return ex, nil
	}
}

func newMQTTClient(s conf.MQTTSettings, override mqtt.Client, m *metrics.MQTTMetrics) (mqtt.Client, error) {
	if override != nil {
		return override, nil
	}
	if !s.Enabled {
		return nil, nil
	}
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.Broker
	cfg.ClientID = s.ClientID
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Retain = s.Retain
	if s.Topic != "" {
		cfg.Topic = s.Topic
	}
	return mqtt.NewClient(cfg, m)
}

func newBackupManager(ctx context.Context, settings *conf.Settings, c *Core, now func() time.Time) (*backup.Manager, error) {
	b := settings.Backup

	state, err := backup.NewStateManager(settings.ResolvePath(b.StateFile))
	if err != nil {
		return nil, err
	}
	local, err := targets.NewLocalTarget(settings.ResolvePath(b.Dir))
	if err != nil {
		return nil, err
	}

	cloud := make(map[backup.Provider]backup.Target)
	if b.GitHub.Enabled {
		gh, err := targets.NewGitHubTarget(targets.GitHubConfig{
			Owner:  b.GitHub.Owner,
			Repo:   b.GitHub.Repo,
			Branch: b.GitHub.Branch,
			Path:   b.GitHub.Path,
			Token:  b.GitHub.Token,
			APIURL: b.GitHub.APIURL,
		})
		if err != nil {
			return nil, err
		}
		cloud[backup.ProviderGitHub] = gh
	}
	if b.Google.Enabled {
		gd, err := targets.NewGoogleDriveTarget(ctx, targets.GoogleDriveConfig{
			CredentialsFile: settings.ResolvePath(b.Google.CredentialsFile),
			Token:           b.Google.Token,
			FolderID:        b.Google.FolderID,
		})
		if err != nil {
			return nil, err
		}
		cloud[backup.ProviderGoogle] = gd
	}

	return backup.NewManager(backup.Options{
		Config: backup.Config{
			Encrypt:    b.Encryption,
			Passphrase: b.Passphrase,
			Timeout:    b.Timeout,
		},
		Repo:      c.Repo,
		Stores:    c.Stores,
		State:     state,
		Local:     local,
		Cloud:     cloud,
		Metrics:   c.Metrics.Backup,
		OnRestore: c.dropDerivedState,
		OnResult: func(r backup.Result) {
			c.Notifier.Notify(backupNotification(r))
		},
		Now: now,
	})
}

// dropDerivedState discards everything computed from the repository
// contents that were just replaced.
func (c *Core) dropDerivedState(context.Context) error {
	c.Feed.SetLive(false)
	c.Feed.Release()
	c.Workspace.Reset()
	c.Sessions.Reset()
	return nil
}

// Run drives the live loops, the backup scheduler and the MQTT connection
// until ctx is canceled.
func (c *Core) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Feed.Run(ctx)
	})

	c.Scheduler.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		c.Scheduler.Stop()
		return nil
	})

	if c.mqttClient != nil {
		g.Go(func() error {
			if err := c.mqttClient.Connect(ctx); err != nil {
				// Publishing is best effort; the client reconnects on its own.
				c.log.Warn("mqtt connect failed", logger.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// FormatSystem erases every saved model, sample and persisted store, drops
// the module session and the workspace, and puts the app store back to its
// defaults. Settings and achievements held in memory are written back, so
// they survive the reset.
func (c *Core) FormatSystem(ctx context.Context) error {
	c.formatMu.Lock()
	defer c.formatMu.Unlock()

	c.Feed.SetLive(false)
	c.Feed.Release()

	if err := c.Repo.FormatSystem(ctx); err != nil {
		return err
	}
	c.Sessions.Reset()
	c.Workspace.Reset()

	if err := c.Stores.ResetApp(ctx); err != nil {
		return fmt.Errorf("reset app store: %w", err)
	}
	if err := c.Stores.Persist(ctx); err != nil {
		return fmt.Errorf("persist stores: %w", err)
	}
	if _, err := c.Stores.Unlock(ctx, appstate.AchievementSystemFormat); err != nil {
		c.log.Warn("failed to unlock achievement", logger.Error(err))
	}

	c.log.Info("system formatted")
	return nil
}

// Close releases the session, the MQTT connection, pending notifications and
// the database.
func (c *Core) Close() {
	c.closeOnce.Do(func() {
		if c.Sessions != nil {
			c.Sessions.Reset()
		}
		if c.mqttClient != nil {
			c.mqttClient.Disconnect()
		}
		c.Notifier.Close()
		if c.DB != nil {
			if err := c.DB.Close(); err != nil {
				c.log.Warn("failed to close database", logger.Error(err))
			}
		}
		errors.FlushTelemetry(telemetryFlushTimeout)
	})
}
