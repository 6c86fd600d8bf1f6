package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social_graph_services/src/auth"
	"social_graph_services/src/config"
	"social_graph_services/src/inits"
	"social_graph_services/src/relations"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "social-graph",
		Short:        "Friend relationships and friend request notifications",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP and WebSocket server",
			RunE:  runServe,
		},
		newReconcileCommand(),
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the postgres schema and build the search index",
			RunE:  runMigrate,
		},
	)
	return root
}

// setup loads config, builds the logger and opens every configured client.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := inits.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.logger.Sync()

	if err := a.migrate(ctx); err != nil {
		return err
	}

	validate, err := a.validator(ctx)
	if err != nil {
		return err
	}
	notifier, err := a.notifier(ctx)
	if err != nil {
		return err
	}
	service := a.service(notifier)
	reconciler := relations.NewReconciler(a.dir, a.logger)

	rt := routes{
		dir:     a.dir,
		service: service,
		inbox:   a.inbox(),
		index:   a.index,
		rdb:     a.rdb,
		channel: a.cfg.NotificationChannel,
		protect: auth.Middleware(validate, a.logger),
		logger:  a.logger,
	}
	if a.cfg.ReconcileOnRead {
		rt.reconciler = reconciler
	}

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           withCORS(newRouter(rt), a.cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.logger.Info("server is starting", zap.String("addr", server.Addr), zap.Bool("atomic_writes", service.Atomic()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if a.cfg.ReconcileInterval > 0 {
		group.Go(func() error {
			reconciler.Run(ctx, a.cfg.ReconcileInterval)
			return nil
		})
	}
	return group.Wait()
}

func newReconcileCommand() *cobra.Command {
	var userID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair friendships and requests that were written to only one side",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.logger.Sync()

			var report relations.Report
			reconciler := relations.NewReconciler(a.dir, a.logger)
			switch {
			case dryRun:
				report, err = reconciler.Preview(cmd.Context(), userID)
			case userID != "":
				report, err = reconciler.ReconcileUser(cmd.Context(), userID)
			default:
				report, err = reconciler.RunOnce(cmd.Context())
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "\t")
			if encodeErr := encoder.Encode(report); encodeErr != nil {
				return encodeErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only repair pairs referenced by this user")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the repairs without applying them")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.logger.Sync()

	return a.migrate(cmd.Context())
}
