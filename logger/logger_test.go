package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, InitLogger(path, "info"))
	Logger.Debug("hidden")
	Logger.Info("visible")
	require.NoError(t, Logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "visible", entry["msg"])
	require.Equal(t, "royalty-dag", entry["service"])
	require.Contains(t, entry, "time")
}

func TestInitLoggerRejectsLevel(t *testing.T) {
	require.Error(t, InitLogger("", "loud"))
}
