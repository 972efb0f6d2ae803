package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	DBName   string
}

// DSN builds the go-sql-driver/mysql connection string.
func (c DatabaseConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

type Connection struct {
	db *sql.DB
}

func NewConnection(config DatabaseConfig) (*Connection, error) {
	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	conn := &Connection{db: db}

	if err := conn.ensureConnection(); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *Connection {
	return &Connection{db: db}
}

func (c *Connection) ensureConnection() error {
	for retries := 0; retries < 3; retries++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.db.PingContext(ctx)
		cancel()

		if err == nil {
			return nil
		}

		log.Warnf("Database ping failed (attempt %d/3): %v", retries+1, err)
		time.Sleep(time.Second * time.Duration(retries+1))
	}
	return fmt.Errorf("failed to establish database connection after 3 attempts")
}

func (c *Connection) Close() error {
	return c.db.Close()
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Connection) GetDB() *sql.DB {
	return c.db
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS checkout_states (
		state_key  VARCHAR(191) NOT NULL PRIMARY KEY,
		value      MEDIUMTEXT   NOT NULL,
		updated_at DATETIME     NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS checkout_subscriptions (
		id              BIGINT AUTO_INCREMENT PRIMARY KEY,
		subscription_id VARCHAR(64)  NOT NULL,
		customer_id     VARCHAR(64)  NOT NULL,
		session_id      VARCHAR(64)  NOT NULL,
		plan_id         VARCHAR(32)  NOT NULL,
		period          VARCHAR(16)  NOT NULL,
		price           DECIMAL(10,2) NOT NULL,
		email           VARCHAR(255) NOT NULL,
		license_plate   VARCHAR(16)  NOT NULL,
		status          VARCHAR(32)  NOT NULL DEFAULT 'incomplete',
		created_at      DATETIME     NOT NULL,
		updated_at      DATETIME     NOT NULL,
		UNIQUE KEY uniq_subscription (subscription_id)
	)`,
}

// EnsureSchema creates the tables the service writes to.
func (c *Connection) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}
