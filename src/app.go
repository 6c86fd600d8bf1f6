package main

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"social_graph_services/src/auth"
	"social_graph_services/src/config"
	d "social_graph_services/src/directory"
	fsdir "social_graph_services/src/directory/firestore"
	memdir "social_graph_services/src/directory/memory"
	pgdir "social_graph_services/src/directory/postgres"
	"social_graph_services/src/events"
	"social_graph_services/src/inits"
	m "social_graph_services/src/models"
	"social_graph_services/src/notifications"
	"social_graph_services/src/relations"
	"social_graph_services/src/search"
)

// app holds every long-lived client the commands share.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	dir         d.Directory
	connPool    *m.PGPool
	rdb         *redis.Client
	firebaseApp *firebase.App
	index       search.Index

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.NeedsFirebase() {
		firebaseApp, err := inits.CreateFirebaseApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			return nil, err
		}
		a.firebaseApp = firebaseApp
	}

	if err := a.openDirectory(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, a.rdb.Close)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	a.index = search.DirectoryIndex{Dir: a.dir}
	if len(cfg.OpenSearchAddresses) > 0 {
		client, err := inits.CreateOpenSearchClient(cfg.OpenSearchAddresses)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.index = &search.OpenSearchIndex{Client: client, Index: cfg.OpenSearchIndex, Dir: a.dir}
	}
	return a, nil
}

func (a *app) openDirectory(ctx context.Context) error {
	switch a.cfg.Directory {
	case config.DirectoryFirestore:
		client, err := a.firebaseApp.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("open firestore: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.dir = fsdir.New(client)
	case config.DirectoryPostgres:
		connPool, err := inits.CreatePostgresPool(ctx, a.cfg.PostgresURL, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			connPool.Pool.Close()
			return nil
		})
		a.connPool = connPool
		a.dir = pgdir.New(connPool)
	default:
		a.logger.Warn("using the in-memory directory, data is lost on exit")
		a.dir = memdir.New()
	}
	return nil
}

// migrate applies the postgres schema and builds the search index where those are configured.
func (a *app) migrate(ctx context.Context) error {
	if a.connPool != nil {
		if err := inits.MigratePostgres(ctx, a.connPool, pgdir.Schema); err != nil {
			return err
		}
		a.logger.Info("postgres schema applied")
	}
	if index, ok := a.index.(*search.OpenSearchIndex); ok {
		if err := inits.InitOpenSearch(ctx, index, a.dir, a.logger); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) validator(ctx context.Context) (jwtmiddleware.ValidateToken, error) {
	switch a.cfg.AuthProvider {
	case config.AuthAuth0:
		return auth.Auth0Validator(a.cfg.Auth0Domain, a.cfg.Auth0Audience)
	default:
		client, err := a.firebaseApp.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firebase auth: %w", err)
		}
		return auth.FirebaseValidator(client), nil
	}
}

func (a *app) notifier(ctx context.Context) (events.Fanout, error) {
	var fanout events.Fanout
	if a.rdb != nil {
		fanout = append(fanout, events.RedisPublisher{Rdb: a.rdb, Channel: a.cfg.NotificationChannel})
	}
	if a.cfg.PushEnabled {
		client, err := a.firebaseApp.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firebase messaging: %w", err)
		}
		fanout = append(fanout, events.PushNotifier{Messaging: client, Dir: a.dir, Logger: a.logger})
	}
	return fanout, nil
}

func (a *app) service(notifier relations.Notifier) *relations.Service {
	opts := []relations.Option{relations.WithLogger(a.logger), relations.WithNotifier(notifier)}
	if a.cfg.WriteMode == config.WriteIndependent {
		opts = append(opts, relations.WithIndependentWrites())
	}
	return relations.NewService(a.dir, opts...)
}

func (a *app) inbox() *notifications.Inbox {
	return notifications.NewInbox(notifications.NewProjector(a.dir, nil, a.logger), notifications.WithCapacity(a.cfg.InboxSize, a.cfg.InboxTTL))
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
