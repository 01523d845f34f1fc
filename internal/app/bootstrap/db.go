// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"github.com/jmestre/hearth/internal/app/system/indexes"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and, when configured, the
// Redis connection used for push delivery.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}

	if appCfg.RedisURI != "" {
		ropts, err := redis.ParseURL(appCfg.RedisURI)
		if err != nil {
			_ = client.Disconnect(ctx)
			return DBDeps{}, fmt.Errorf("parse redis uri: %w", err)
		}
		rdb := redis.NewClient(ropts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Push delivery is best-effort; an unreachable Redis should not
			// block startup.
			logger.Warn("redis unreachable, push delivery disabled", zap.Error(err))
			_ = rdb.Close()
		} else {
			deps.Redis = rdb
			logger.Info("connected to Redis for push delivery")
		}
	}

	return deps, nil
}

// EnsureSchema creates the collection indexes the engine relies on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return indexes.EnsureAll(ctx, deps.MongoDatabase)
}
