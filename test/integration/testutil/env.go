package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "courtsync"

	ConnectionTimeout         = 10 * time.Second
	DefaultHealthCheckTimeout = 30 * time.Second
)

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	APIToken     string
}

func NewTestEnv() *TestEnv {
	serverPort := getEnv("TEST_SERVER_PORT", "8080")
	serverURL := getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort))

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    serverURL,
		APIToken:     os.Getenv("TEST_API_TOKEN"),
	}
}

// Setup connects to the running engine and its database. Tests are skipped
// entirely when TEST_SERVER_URL is not set, so the suite is a no-op unless an
// engine is actually up.
func Setup(t *testing.T) (*TestEnv, *MongoHelper, *Client) {
	t.Helper()

	if os.Getenv("TEST_SERVER_URL") == "" {
		t.Skip("TEST_SERVER_URL not set; skipping integration test")
	}

	env := NewTestEnv()
	mongo := NewMongoHelper(t, env.MongoURI, env.DatabaseName)

	client := NewClient(env.ServerURL)
	client.Token = env.APIToken
	client.WaitForHealthy(t, DefaultHealthCheckTimeout)

	return env, mongo, client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
