package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"synq/backend/internal/config"
	"synq/backend/internal/db"
	"synq/backend/internal/db/migrate"
	healthhandler "synq/backend/internal/health/handler"
	userrepo "synq/backend/internal/user/repository"
	waitlistrepo "synq/backend/internal/waitlist/repository"
)

// stores bundles the repositories of the configured backend.
type stores struct {
	users    userrepo.Repository
	waitlist waitlistrepo.Repository
	pinger   healthhandler.Pinger
	close    func(context.Context) error
}

// openStores connects to the backend selected by DATABASE_DRIVER. SQLite databases are migrated on open;
// Postgres expects cmd/migrate to have run.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		return &stores{
			users:    userrepo.NewPostgresRepository(conn),
			waitlist: waitlistrepo.NewPostgresRepository(conn),
			pinger:   conn,
			close:    func(context.Context) error { return conn.Close() },
		}, nil

	case config.DriverSQLite:
		conn, err := db.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if err := migrate.UpSQLite(conn); err != nil {
			conn.Close()
			return nil, err
		}
		return &stores{
			users:    userrepo.NewSQLiteRepository(conn),
			waitlist: waitlistrepo.NewSQLiteRepository(conn),
			pinger:   conn,
			close:    func(context.Context) error { return conn.Close() },
		}, nil

	case config.DriverMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		database := client.Database(cfg.MongoDatabase)
		users := userrepo.NewMongoRepository(database.Collection(userrepo.DefaultUsersCollection))
		waitlist := waitlistrepo.NewMongoRepository(database.Collection(waitlistrepo.DefaultWaitlistCollection))
		if err := users.EnsureIndexes(pingCtx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		if err := waitlist.EnsureIndexes(pingCtx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			users:    users,
			waitlist: waitlist,
			pinger: healthhandler.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			}),
			close: client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
}
