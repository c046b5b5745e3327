// ABOUTME: Root cobra command and process wiring for the stakemap CLI
// ABOUTME: Loads config, builds the logger, stores, engine, and limiter, and signs in for --user
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/stakemap/cloud"
	"github.com/harperreed/stakemap/config"
	"github.com/harperreed/stakemap/db"
	"github.com/harperreed/stakemap/logging"
	"github.com/harperreed/stakemap/sync"
	"github.com/harperreed/stakemap/usage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errNoCloud is returned by commands that only make sense with a cloud backend.
var errNoCloud = errors.New("no cloud backend configured (set cloud_backend in the config or STAKEMAP_CLOUD_BACKEND)")

// app holds everything a command needs. Stores are opened lazily in the
// root's PersistentPreRunE so version and help never touch disk.
type app struct {
	version    string
	configPath string
	userID     string
	devLog     bool

	cfg        *config.Config
	logger     *zap.Logger
	engine     *sync.Engine
	limiter    *usage.Limiter
	usageStore cloud.UsageStore
	login      *sync.ReconcileResult

	closers []func() error
}

// Execute runs the CLI until the command finishes or the process is interrupted.
func Execute(version string) error {
	a := &app{version: version}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCommand(a).ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "stakemap",
		Short: "Stakeholder maps stored locally and mirrored to the cloud when signed in",
		Long: `stakemap keeps stakeholder maps on this machine and, when a cloud backend
is configured and --user is given, mirrors every change to the cloud.

Signing in with a new device pulls the user's maps from the cloud. Signing in
with anonymous local maps uploads them and attaches them to the user.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsStores(cmd) {
				return nil
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			return a.signIn(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: $XDG_DATA_HOME/stakemap/config.json)")
	root.PersistentFlags().StringVar(&a.userID, "user", "", "Sign in as this user id before running the command")
	root.PersistentFlags().BoolVar(&a.devLog, "dev", false, "Human-readable development logging")

	root.AddCommand(
		newMapCommand(a),
		newStakeholderCommand(a),
		newInteractionCommand(a),
		newImportCommand(a),
		newExportCommand(a),
		newSyncCommand(a),
		newUsageCommand(a),
		newMCPCommand(a),
		newVersionCommand(a),
	)
	return root
}

const skipStores = "skip-stores"

func needsStores(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[skipStores]; ok {
			return false
		}
		switch c.Name() {
		case "help", "completion":
			return false
		}
	}
	return true
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipStores: ""},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stakemap version %s\n", a.version)
		},
	}
}

func (a *app) open(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, a.devLog)
	if err != nil {
		return err
	}
	a.logger = logger

	local, err := db.Open(cfg.LocalBackend, cfg.DataDir, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, local.Close)

	store, err := a.openCloud(ctx)
	if err != nil {
		return err
	}

	reconcileTimeout, mirrorTimeout, err := cfg.Timeouts()
	if err != nil {
		return err
	}
	opts := sync.DefaultOptions()
	opts.ReconcileTimeout = reconcileTimeout
	opts.MirrorTimeout = mirrorTimeout

	var engineStore cloud.Store
	if store != nil {
		engineStore = cloud.NewBreakerStore(store, cloud.DefaultBreakerConfig(), logger)
	}
	a.engine = sync.NewEngine(local, engineStore, logger, opts)

	if a.usageStore != nil {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		a.limiter = usage.NewLimiter(a.usageStore, logger, usage.Options{
			DefaultLimit: cfg.WeeklyLimit,
			Location:     loc,
		})
	}
	return nil
}

// cloudBackend is what the Redis and DynamoDB stores both provide.
type cloudBackend interface {
	cloud.Store
	cloud.UsageStore
}

func (a *app) openCloud(ctx context.Context) (cloud.Store, error) {
	var backend cloudBackend
	switch a.cfg.CloudBackend {
	case config.CloudRedis:
		rs, err := cloud.NewRedisStore(a.cfg.RedisURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		backend = rs
	case config.CloudDynamo:
		ds, err := cloud.NewDynamoStore(ctx, cloud.DynamoConfig{
			Table:    a.cfg.DynamoTable,
			Region:   a.cfg.DynamoRegion,
			Endpoint: a.cfg.DynamoEndpoint,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		backend = ds
	default:
		return nil, nil
	}
	a.usageStore = backend
	return backend, nil
}

func (a *app) signIn(ctx context.Context) error {
	if a.userID == "" {
		return nil
	}
	if !a.cfg.HasCloud() {
		a.logger.Warn("ignoring --user without a cloud backend", zap.String("user", a.userID))
		return nil
	}
	result, err := a.engine.HandleLogin(ctx, a.userID)
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}
	a.login = result
	if result.Partial {
		a.logger.Warn("sign-in finished with failures; run sync again to retry",
			zap.Int("failed", len(result.Failed)))
	}
	return nil
}

// close drains pending cloud mirrors before closing the stores.
func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// requireLimiter returns the limiter or errNoCloud.
func (a *app) requireLimiter() (*usage.Limiter, error) {
	if a.limiter == nil {
		return nil, errNoCloud
	}
	return a.limiter, nil
}
