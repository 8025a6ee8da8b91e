package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	"github.com/spf13/viper"

	"raffle-service/utils"
)

type DatabaseConfig struct {
	User       string
	Password   string
	Host       string
	Port       int
	Name       string
	MaxConns   int32
	Migrations string
}

func LoadDatabaseConfig() DatabaseConfig {
	viper.SetDefault("postgres_db.port", 5432)
	viper.SetDefault("postgres_db.max_conns", 4)
	viper.SetDefault("postgres_db.migrations", "file:///app/migration")
	return DatabaseConfig{
		User:       viper.GetString("postgres_db.user"),
		Password:   viper.GetString("postgres_db.password"),
		Host:       viper.GetString("postgres_db.cluster"),
		Port:       viper.GetInt("postgres_db.port"),
		Name:       viper.GetString("postgres_db.keyspace"),
		MaxConns:   viper.GetInt32("postgres_db.max_conns"),
		Migrations: viper.GetString("postgres_db.migrations"),
	}
}

func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

// ConnectDb applies pending migrations and opens the application pool.
func ConnectDb(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	utils.LogMessage(utils.INFO, "Connecting to database... "+cfg.Host, ServiceName)
	databaseUrl := cfg.URL()

	migrationDb, err := sql.Open("postgres", databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection for migrations: %w", err)
	}
	defer migrationDb.Close()
	if err := runMigrations(migrationDb, cfg.Migrations); err != nil {
		return nil, err
	}

	dbConfig, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgxpool config: %w", err)
	}
	dbConfig.MaxConns = cfg.MaxConns
	dbConfig.MinConns = 0
	dbConfig.MaxConnLifetime = time.Hour
	dbConfig.MaxConnIdleTime = 30 * time.Minute
	dbConfig.HealthCheckPeriod = time.Minute
	dbConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("error while creating pgxpool connection: %w", err)
	}
	utils.LogMessage(utils.INFO, "Database connected and ready for application use!", ServiceName)
	return pool, nil
}

func runMigrations(db *sql.DB, source string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create postgres driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}
	utils.LogMessage(utils.INFO, "Migrations applied successfully!", ServiceName)
	return nil
}
