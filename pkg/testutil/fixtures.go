package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	// sqlite driver for SQLiteDatabase
	_ "modernc.org/sqlite"
)

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// IntegrationDSN returns the database DSN held in the environment variable
// env. The test is skipped in short mode or when the variable is unset.
func IntegrationDSN(t *testing.T, env string) string {
	t.Helper()
	IntegrationTest(t)
	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("%s is not set", env)
	}
	return dsn
}

// SQLiteDatabase creates a sqlite database file in the test's temp
// directory, runs the statements against it and returns its DSN.
func SQLiteDatabase(t *testing.T, statements ...string) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "idm.db")
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return dsn
}

// ConnectorFile writes a YAML connector file for the connector type and
// returns its path. framework may be nil.
func ConnectorFile(t *testing.T, connector string, properties, framework map[string]interface{}) string {
	t.Helper()
	doc := map[string]interface{}{
		"connector":  connector,
		"properties": properties,
	}
	if framework != nil {
		doc["framework"] = framework
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	return WriteFile(t, connector+".yaml", data)
}

// WriteFile creates a file with content in the test's temp directory.
func WriteFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}
