package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"classroom/internal/config"
	"classroom/internal/database"
)

// Open connects the backend selected by cfg and prepares its schema:
// migrations for SQL backends, indexes for MongoDB. The returned func
// releases the connection.
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Store, func() error, error) {
	if cfg.IsMongo() {
		mdb, client, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }

		if err := database.EnsureIndexes(ctx, mdb); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
		logger.Infow("MongoDB indexes ensured", "database", cfg.MongoDatabase)
		return NewMongoStore(mdb), closeFn, nil
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Infow("Database connection established", "type", cfg.DatabaseType)

	if err := db.RunMigrations(cfg.MigrationsPath, logger); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Infow("Migrations completed successfully")
	return NewSQLStore(db), db.Close, nil
}
