// Package connection manages the client bootstrap for the mongo-backed
// store: lazy connect, authentication, the unauthenticated-mode user
// provisioning primitive, and the test-mode switch.
package connection

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"mongomap/src/settings"
	"mongomap/src/store"
)

// Connection lazily builds the mongo client: nothing dials out until the
// client is first needed, an explicit Connect, or an Authenticate.
type Connection struct {
	mu       sync.Mutex
	client   *mongo.Client
	uri      string
	creds    *options.Credential
	testMode bool

	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger) *Connection {
	args := settings.GetSettings()
	return &Connection{
		uri:      fmt.Sprintf("mongodb://%s:%d", args.Host, args.Port),
		testMode: args.TestMode,
		logger:   logger,
	}
}

// Connect explicitly dials the given host and port, replacing any existing
// client.
func (c *Connection) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uri = fmt.Sprintf("mongodb://%s:%d", host, port)
	return c.rebuild(ctx)
}

// Authenticate rebuilds the client with the given credentials. The driver
// performs the SCRAM handshake at connect time, so authentication is a
// reconnect rather than a separate command. An empty authDatabase
// authenticates against admin, giving access to all databases.
func (c *Connection) Authenticate(ctx context.Context, username, password, authDatabase string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred := options.Credential{Username: username, Password: password}
	if authDatabase != "" {
		cred.AuthSource = authDatabase
	}
	c.creds = &cred
	return c.rebuild(ctx)
}

// rebuild must be called with the mutex held.
func (c *Connection) rebuild(ctx context.Context) error {
	if c.client != nil {
		if err := c.client.Disconnect(ctx); err != nil {
			c.logger.Warnf("error disconnecting previous client: %v", err)
		}
		c.client = nil
	}
	opts := options.Client().ApplyURI(c.uri)
	if c.creds != nil {
		opts.SetAuth(*c.creds)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to build mongo client for %s: %w", c.uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDatabaseDown, c.uri, err)
	}
	c.client = client
	return nil
}

// Client returns the live client, connecting lazily if needed. It
// implements store.ClientProvider.
func (c *Connection) Client(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		if err := c.rebuild(ctx); err != nil {
			return nil, err
		}
	}
	return c.client, nil
}

// TestMode implements store.ClientProvider.
func (c *Connection) TestMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.testMode
}

// SetTestMode reroutes all collection paths into the scratch test database.
func (c *Connection) SetTestMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.testMode = on
}

// Store returns the mongo-backed store over this connection.
func (c *Connection) Store() store.Store {
	return store.NewMongoStore(c, c.logger)
}

// AddUser provisions a user for authentication. This only works while the
// server runs unauthenticated (or with an already-privileged connection);
// it exists for bootstrap and must be disabled before production exposure.
// An empty db adds the user to admin with access to all databases.
func (c *Connection) AddUser(ctx context.Context, name, password string, readOnly bool, db string) error {
	client, err := c.Client(ctx)
	if err != nil {
		return err
	}
	c.logger.Warnf("adding user %q over an unauthenticated bootstrap connection", name)

	role := "readWrite"
	if readOnly {
		role = "read"
	}
	target := db
	if target == "" {
		target = "admin"
		role = "readWriteAnyDatabase"
		if readOnly {
			role = "readAnyDatabase"
		}
	}
	cmd := bson.D{
		{Key: "createUser", Value: name},
		{Key: "pwd", Value: password},
		{Key: "roles", Value: bson.A{bson.D{{Key: "role", Value: role}, {Key: "db", Value: target}}}},
	}
	if err := client.Database(target).RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("failed to create user %q on %s: %w", name, target, err)
	}
	return nil
}

// ListDatabases returns the database names on the server.
func (c *Connection) ListDatabases(ctx context.Context) ([]string, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	names, err := client.ListDatabaseNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return names, nil
}

// ListCollections returns the collection names of a database.
func (c *Connection) ListCollections(ctx context.Context, database string) ([]string, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	names, err := client.Database(database).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of %s: %w", database, err)
	}
	return names, nil
}

// DropTestDatabase drops the scratch test database. Test harnesses call
// this after each test so cases only see what they created themselves.
func (c *Connection) DropTestDatabase(ctx context.Context) error {
	client, err := c.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.Database(store.TestDatabaseName).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop test database: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}
