// Command orchestrator runs the cost-optimized AI coding agent orchestrator:
// the Control API, the Assigner/Executor pool, the Stuck-Task Sweeper, and
// the WebSocket event gateway, all wired against a Postgres-backed store.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/tarsy/pkg/agentrt"
	"github.com/codeready-toolchain/tarsy/pkg/api"
	"github.com/codeready-toolchain/tarsy/pkg/budget"
	"github.com/codeready-toolchain/tarsy/pkg/complexity"
	"github.com/codeready-toolchain/tarsy/pkg/config"
	"github.com/codeready-toolchain/tarsy/pkg/events"
	"github.com/codeready-toolchain/tarsy/pkg/pgstore"
	"github.com/codeready-toolchain/tarsy/pkg/queue"
	"github.com/codeready-toolchain/tarsy/pkg/resourcepool"
	"github.com/codeready-toolchain/tarsy/pkg/review"
	"github.com/codeready-toolchain/tarsy/pkg/store"
	"github.com/codeready-toolchain/tarsy/pkg/sweeper"
	"github.com/codeready-toolchain/tarsy/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadDotEnv() {
	envPath := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no %s file loaded: %v (continuing with existing environment)", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}
}

func main() {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: fmt.Sprintf("%s: cost-optimized AI coding agent orchestrator", version.AppName),
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", getEnv("CONFIG_PATH", ""), "path to orchestrator.yaml")

	root.AddCommand(serveCmd(&configPath), migrateCmd(), sweepOnceCmd(&configPath))

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the Control API, Assigner/Executor pool, and Sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadDotEnv()
			dbCfg, err := pgstore.LoadConfigFromEnv()
			if err != nil {
				return fmt.Errorf("load database config: %w", err)
			}
			client, err := pgstore.NewClient(dbCfg)
			if err != nil {
				return fmt.Errorf("connect and migrate: %w", err)
			}
			defer client.Close()
			log.Println("migrations applied")
			return nil
		},
	}
}

func sweepOnceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-once",
		Short: "run a single Stuck-Task Sweeper pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadDotEnv()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dbCfg, err := pgstore.LoadConfigFromEnv()
			if err != nil {
				return fmt.Errorf("load database config: %w", err)
			}
			client, err := pgstore.NewClient(dbCfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer client.Close()

			db := pgstore.New(client.Gorm())
			resources := resourcepool.New(map[string]int{
				resourcepool.ClassLocal:        cfg.LocalSlots,
				resourcepool.ClassPremiumCloud: cfg.PremiumSlots,
			})
			bus := events.NewBus()
			publisher := events.NewEventPublisher(client.DB())
			dispatch := events.NewDispatcher(bus, publisher)

			sw := sweeper.New(db, db, resources, dispatch, cfg.SweeperInterval(), cfg.TaskTimeout())
			ctx := context.Background()
			if err := sw.Sweep(ctx); err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			log.Printf("swept %d recovered tasks", len(sw.RecentRecoveries()))
			return nil
		},
	}
}

// runServe composes every component into a running server and blocks until
// an interrupt or terminate signal arrives, then drains in-flight work
// before returning.
func runServe(configPath string) error {
	loadDotEnv()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbCfg, err := pgstore.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}
	client, err := pgstore.NewClient(dbCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer client.Close()

	var db store.Store = pgstore.New(client.Gorm())

	resources := resourcepool.New(map[string]int{
		resourcepool.ClassLocal:        cfg.LocalSlots,
		resourcepool.ClassPremiumCloud: cfg.PremiumSlots,
	})

	guard := budget.NewGuard(budget.Config{
		DailyLimitCents:  cfg.DailyBudgetCents,
		WarningThreshold: cfg.BudgetWarningThreshold,
		Enabled:          true,
	})

	bus := events.NewBus()
	publisher := events.NewEventPublisher(client.DB())
	dispatch := events.NewDispatcher(bus, publisher)

	pgDB, ok := db.(interface {
		GetEventsSince(ctx context.Context, channel string, sinceID, limit int) ([]events.PersistedEvent, error)
	})
	var connManager *events.ConnectionManager
	if ok {
		catchup := events.NewEventServiceAdapter(pgDB)
		connManager = events.NewConnectionManager(catchup, 10*time.Second)
		listener := events.NewNotifyListener(dbCfg.DSN(), connManager)
		connManager.SetListener(listener)
		if err := listener.Start(context.Background()); err != nil {
			return fmt.Errorf("start notify listener: %w", err)
		}
	}

	runtime := agentrt.NewHTTPRuntime(cfg.AgentRuntimeBaseURL, cfg.AgentRuntimeTimeout())
	judge := newRuntimeJudge(runtime)

	reviewTrigger := review.New(db, db, db, dispatch, judge, guard, cfg.ReviewMinComplexity, cfg.EnableReviews)
	executor := queue.NewExecutor(db, db, db, resources, guard, dispatch, runtime, reviewTrigger)
	assigner := queue.NewAssigner(db, db, resources, dispatch, executor, cfg.AssignerPollInterval())

	sw := sweeper.New(db, db, resources, dispatch, cfg.SweeperInterval(), cfg.TaskTimeout())

	var assessJudge complexity.Judge
	if cfg.EnableJudgeAssessor {
		assessJudge = judge
	}
	assessor := complexity.NewAssessor(assessJudge, cfg.EnableJudgeAssessor)

	server := api.NewServer(cfg, db, resources, guard, sw, assigner, assessor, dispatch, connManager)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go assigner.Start(ctx)
	go sw.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("orchestrator listening", "addr", cfg.ServerAddr)
		if err := server.Start(cfg.ServerAddr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "error", err)
		}
	}

	assigner.Stop()
	sw.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
