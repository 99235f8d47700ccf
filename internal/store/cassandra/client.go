// Package cassandra persists session ledgers in Cassandra.
package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"
)

// Config holds Cassandra connection configuration
type Config struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	Consistency string // gocql level name, e.g. QUORUM or LOCAL_ONE
	Timeout     time.Duration
}

// Client owns the gocql session used by Store.
type Client struct {
	session  *gocql.Session
	keyspace string
	logger   *zap.Logger
}

// schema is applied in order on connect. %[1]s is the keyspace.
var schema = []string{
	`CREATE KEYSPACE IF NOT EXISTS %[1]s
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`,
	// Every record of a session lives in one partition; the static version
	// column guards conditional batches.
	`CREATE TABLE IF NOT EXISTS %[1]s.ledger_records (
		session_id text,
		record_key text,
		body blob,
		version bigint static,
		PRIMARY KEY (session_id, record_key)
	)`,
}

// NewClient connects to the cluster and makes sure the ledger schema exists.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("no Cassandra hosts configured")
	}
	if !validIdentifier(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %q", cfg.Keyspace)
	}
	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, fmt.Errorf("invalid consistency value: %w", err)
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Consistency = consistency
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	for _, stmt := range schema {
		if err := session.Query(fmt.Sprintf(stmt, cfg.Keyspace)).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	log.Info("Connected to Cassandra",
		zap.Strings("hosts", cfg.Hosts),
		zap.String("keyspace", cfg.Keyspace),
		zap.Stringer("consistency", consistency),
	)
	return &Client{session: session, keyspace: cfg.Keyspace, logger: log}, nil
}

// Session returns the underlying gocql.Session
func (c *Client) Session() *gocql.Session {
	return c.session
}

// Keyspace returns the configured keyspace
func (c *Client) Keyspace() string {
	return c.keyspace
}

// Close closes the Cassandra session
func (c *Client) Close() {
	if c.session == nil {
		return
	}
	c.session.Close()
	c.logger.Info("Cassandra session closed")
}

// validIdentifier reports whether name can be spliced into CQL unquoted.
func validIdentifier(name string) bool {
	if name == "" || len(name) > 48 {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
