package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	usersync "github.com/goliatone/go-user-sync"
	"github.com/goliatone/go-user-sync/activitymap"
	"github.com/goliatone/go-user-sync/queue"
	"github.com/goliatone/go-user-sync/receiver"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = 24 * time.Hour
)

// node is everything one process runs, wired from the config
type node struct {
	cfg       *usersync.Config
	logger    *slog.Logger
	repo      usersync.RepositoryManager
	audit     *usersync.SyncLogger
	registry  *usersync.AppRegistry
	pool      *queue.WorkerPool
	publisher *usersync.PublishService
	observer  *usersync.ChangeObserver
	srv       router.Server[*fiber.App]
}

func newNode(cfg *usersync.Config, db *bun.DB, logger *slog.Logger) *node {
	n := &node{
		cfg:    cfg,
		logger: logger,
		repo:   usersync.NewRepositoryManager(db, usersync.WithUsersLogger(logger)),
	}

	n.audit = usersync.NewSyncLogger(n.repo.SyncLogs(),
		usersync.WithSyncLoggingEnabled(cfg.Logging.Enabled),
		usersync.WithSyncLoggerLogger(logger),
	)

	events := activitymap.Sink(func(ctx context.Context, activity activitymap.Normalized) error {
		logger.InfoContext(ctx, "sync activity",
			"verb", activity.Verb,
			"actor", activity.ActorID,
			"object_type", activity.ObjectType,
			"object", activity.ObjectID,
			"metadata", activity.Metadata,
		)
		return nil
	})

	if cfg.Mode.Publishes() {
		n.wirePublisher(events)
	}
	if cfg.Mode.Receives() {
		n.wireReceiver(events)
	}
	return n
}

func (n *node) wirePublisher(events usersync.EventSink) {
	cfg := n.cfg.Publisher

	var source usersync.AppSource = usersync.StaticAppSource(cfg.TargetApps())
	if cfg.AppSource == usersync.AppSourceDatabase {
		source = usersync.StoreAppSource{Store: n.repo.SyncApps()}
	}
	n.registry = usersync.NewAppRegistry(source, n.cfg.PublisherAPIKey(),
		usersync.WithRegistryLogger(n.logger),
	)

	client := usersync.NewDeliveryClient(n.registry,
		usersync.WithTimeout(cfg.Timeout()),
		usersync.WithRemotePrefix(cfg.RemotePrefix),
		usersync.WithSkipTLSForTestDomains(cfg.SkipTLSForTestDomains, cfg.TestDomainSuffixes...),
		usersync.WithDeliveryLogger(n.logger),
	)

	dispatcher := usersync.NewDispatcher(n.registry, client,
		usersync.WithDispatcherEvents(events),
		usersync.WithDispatcherAudit(n.audit),
		usersync.WithDispatcherLogger(n.logger),
	)

	n.pool = queue.NewWorkerPool(
		queue.WithWorkers(cfg.Workers),
		queue.WithPoolLogger(n.logger),
		queue.WithPoolFailureHandler(func(ctx context.Context, job queue.Job, attempts int, err error) {
			logError(ctx, n.logger.With("job", job.Type(), "attempts", attempts), "sync job gave up", err)
		}),
	)

	n.publisher = usersync.NewPublishService(n.pool, dispatcher,
		usersync.WithQueueName(cfg.Queue),
		usersync.WithQueueConnection(cfg.Connection),
		usersync.WithTries(cfg.Tries),
		usersync.WithBackoff(cfg.Backoff()),
		usersync.WithPublishLogger(n.logger),
	)

	if cfg.AutoObserve {
		n.observer = usersync.NewChangeObserver(n.publisher,
			usersync.WithSyncFields(cfg.SyncFields...),
			usersync.WithObserverLogger(n.logger),
		)
		n.repo.Users().OnUpdate(n.observer.UserUpdated)
	}
}

func (n *node) wireReceiver(events usersync.EventSink) {
	cfg := n.cfg.Receiver

	n.srv = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:               "usersync",
			DisableStartupMessage: true,
			ErrorHandler:          receiver.ErrorHandler(n.logger),
		})
	})

	controller := receiver.NewController(n.repo,
		receiver.WithAPIKey(n.cfg.ReceiverAPIKey()),
		receiver.WithRoutePrefix(cfg.RoutePrefix),
		receiver.WithDefaultRole(cfg.DefaultRole),
		receiver.WithDefaultActive(cfg.DefaultActive),
		receiver.WithHashID(cfg.UseHashID),
		receiver.WithAudit(n.audit),
		receiver.WithEvents(events),
		receiver.WithLogger(n.logger),
	)
	receiver.RegisterRoutes(n.srv.Router(), controller)
}

// Run blocks until ctx is done or one of the components fails
func (n *node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if n.pool != nil {
		g.Go(func() error {
			return n.pool.Run(gctx)
		})
	}

	if n.srv != nil {
		addr := n.cfg.Receiver.Addr
		g.Go(func() error {
			n.logger.Info("receiver listening", "addr", addr)
			if err := n.srv.Serve(addr); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryExternal, "receiver stopped").
					WithMetadata(map[string]any{"addr": addr})
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return n.srv.Shutdown(ctx)
		})
	}

	if retention := n.cfg.Logging.Retention(); retention > 0 {
		g.Go(func() error {
			n.pruneLoop(gctx, retention)
			return nil
		})
	}

	return g.Wait()
}

func (n *node) pruneLoop(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n.prune(ctx, retention)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (n *node) prune(ctx context.Context, retention time.Duration) {
	removed, err := n.repo.SyncLogs().Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		logError(ctx, n.logger, "failed to prune sync logs", err)
		return
	}
	if removed > 0 {
		n.logger.Info("pruned sync logs", "rows", removed, "retention", retention.String())
	}
}

func cmdServe(global *settings, logger func() *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the receiver and the publisher workers",
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger()

			cfg, err := global.Load(c)
			if err != nil {
				return err
			}

			db, err := openDB(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database", "error", err.Error())
				}
			}()

			if err := usersync.Migrate(ctx, db); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting usersync",
				"mode", string(cfg.Mode),
				"app_source", cfg.Publisher.AppSource,
				"auto_observe", cfg.Publisher.AutoObserve,
			)

			if err := newNode(cfg, db, log).Run(ctx); err != nil {
				return err
			}

			log.Info("usersync stopped")
			return nil
		},
	}
}
