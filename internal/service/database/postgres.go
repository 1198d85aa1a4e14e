package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/kapu/pizzabot-go/internal/constants"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresService owns the connection pool shared by the menu and order
// repositories.
type PostgresService struct {
	db     *sql.DB
	logger *zap.Logger
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func NewPostgresService(cfg PostgresConfig, logger *zap.Logger) (*PostgresService, error) {
	db, err := sql.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open order database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBConfig.MaxOpenConns)
	db.SetMaxIdleConns(constants.DBConfig.MaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), constants.DBConfig.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach order database: %w", err)
	}

	logger.Info("Order database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("sslmode", sslModeOrDefault(cfg.SSLMode)),
	)

	return &PostgresService{
		db:     db,
		logger: logger,
	}, nil
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

// buildDSN renders the connection URL. Credentials are escaped so passwords
// with URL metacharacters survive.
func buildDSN(cfg PostgresConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
		cfg.Host, cfg.Port, cfg.Database, sslModeOrDefault(cfg.SSLMode))
}

func (ps *PostgresService) GetDB() *sql.DB {
	return ps.db
}

func (ps *PostgresService) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}

func (ps *PostgresService) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}
