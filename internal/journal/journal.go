// Package journal writes completed trades to a SQLite audit table.
//
// The journal is write-only from the engine's point of view: nothing is
// read back at startup, so no trade state survives a restart. The table
// exists for offline analysis of a session, not for recovery.
package journal

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// Journal persists settled and cancelled trades to SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the journal database at dbPath.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id     TEXT NOT NULL,
		type         TEXT NOT NULL,
		status       TEXT NOT NULL,
		strategy     TEXT NOT NULL,
		entry_price  REAL NOT NULL,
		exit_price   REAL NOT NULL,
		stake        REAL NOT NULL,
		profit       REAL NOT NULL,
		opened_at    DATETIME NOT NULL,
		recorded_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record inserts one completed trade.
func (j *Journal) Record(t model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (trade_id, type, status, strategy, entry_price, exit_price, stake, profit, opened_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		string(t.Type),
		string(t.Status),
		t.StrategyUsed,
		t.EntryPrice,
		t.ExitPrice,
		t.Stake,
		t.Profit,
		time.UnixMilli(t.OpenedAt).UTC().Format(time.RFC3339),
	)
	return err
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
