package startup

import (
	"testing"

	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/pkg/config"
)

func TestNewLoggerUsesConfiguredLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(config.Log{JSON: true, Level: "debug", Dir: dir})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer logger.Close()

	levels := logger.GetChannelLevels()
	if levels[string(logging.ChannelSystem)] != "DEBUG" {
		t.Fatalf("levels = %v", levels)
	}
}

func TestNewLoggerStreamsWhenEnabled(t *testing.T) {
	logger, err := NewLogger(config.Log{JSON: true, Level: "info", Stream: true})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer logger.Close()
	if logger.Broadcaster() == nil {
		t.Fatal("expected a log broadcaster")
	}

	quiet, err := NewLogger(config.Log{Level: "info"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer quiet.Close()
	if quiet.Broadcaster() != nil {
		t.Fatal("streaming should be off")
	}
}

func TestOpenDatabaseCreatesSchema(t *testing.T) {
	db, err := OpenDatabase(config.Database{Driver: "sqlite3", DSN: "file::memory:", MaxOpenConns: 1}, logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"leads", "pii_risks"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil || name != table {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenDatabase(config.Database{Driver: "postgres", DSN: "x"}, logging.NewDiscardLogger()); err == nil {
		t.Fatal("expected an error for an unregistered driver")
	}
}
