// Package journal persists alerts to an append-only, hash-chained JSONL
// log, mirrors them into a queryable SQLite table, and fans live copies
// out to connected listeners over a Unix socket.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vigil/internal/events"
)

// Record is one journal entry: the alert plus its position in the hash
// chain.
type Record struct {
	Alert    events.Alert
	PrevHash string
	Hash     string
}

// Store is the append-only alert journal. The JSONL log file is the
// durability source of truth; the SQLite table is an additional,
// queryable mirror written in the same critical section. A failed write to
// one of them is not rolled back in the other.
type Store struct {
	db         *sql.DB
	logFile    *os.File
	socketPath string
	listeners  []net.Conn
	mu         sync.RWMutex

	hashMu   sync.Mutex
	lastHash string
}

// Config configures the journal store.
type Config struct {
	DBPath     string // SQLite file path; "journal.db" if empty
	LogPath    string // append-only JSONL journal file; "alerts.jsonl" if empty
	SocketPath string // Unix socket for live fan-out; disabled if empty
}

// Open creates or reopens the journal database at cfg.DBPath.
func Open(cfg Config) (*Store, error) {
	path := cfg.DBPath
	if path == "" {
		path = "journal.db"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logPath := cfg.LogPath
	if logPath == "" {
		logPath = "alerts.jsonl"
	}
	if logDir := filepath.Dir(logPath); logDir != "" && logDir != "." {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("create journal log directory: %w", err)
		}
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal log file: %w", err)
	}

	s := &Store{db: db, logFile: logFile, socketPath: cfg.SocketPath, lastHash: GenesisHash}
	if err := s.initLastHash(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("init last hash: %w", err)
	}

	if cfg.SocketPath != "" {
		if err := s.startSocketListener(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start socket listener: %w", err)
		}
	}

	return s, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT UNIQUE NOT NULL,
		rule_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		source TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL,
		raw_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_rule ON alerts(rule_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) initLastHash() error {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT hash FROM alerts ORDER BY id DESC LIMIT 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		s.lastHash = GenesisHash
		return nil
	}
	if err != nil {
		return err
	}
	if hash.Valid && hash.String != "" {
		s.lastHash = hash.String
	} else {
		s.lastHash = GenesisHash
	}
	return nil
}

// Append persists alert as the next entry in the hash chain and notifies
// any connected listeners.
func (s *Store) Append(ctx context.Context, alert events.Alert) error {
	rawJSON, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	s.hashMu.Lock()
	defer s.hashMu.Unlock()

	prevHash := s.lastHash
	hash := ComputeHash(alert, prevHash)

	line := append(append([]byte{}, rawJSON...), '\n')
	if _, err := s.logFile.Write(line); err != nil {
		slog.Error("journal log write failed", "alert_id", alert.AlertID, "error", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			alert_id, rule_id, severity, title, description,
			source, event_type, timestamp, prev_hash, hash, raw_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		alert.AlertID,
		alert.RuleID,
		alert.Severity.String(),
		alert.Title,
		alert.Description,
		alert.Event.Source,
		alert.Event.EventType,
		alert.Timestamp.Format(time.RFC3339Nano),
		prevHash,
		hash,
		string(rawJSON),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	s.lastHash = hash
	s.notifyListeners(rawJSON)
	return nil
}

// QueryOptions filters journal reads.
type QueryOptions struct {
	RuleID   string
	Severity string
	Since    time.Time
	Limit    int
}

// Query returns journaled alerts matching opts, most recent first.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]events.Alert, error) {
	query := `SELECT raw_json FROM alerts WHERE 1=1`
	var args []any

	if opts.RuleID != "" {
		query += " AND rule_id = ?"
		args = append(args, opts.RuleID)
	}
	if opts.Severity != "" {
		query += " AND severity = ?"
		args = append(args, opts.Severity)
	}
	if !opts.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, opts.Since.Format(time.RFC3339Nano))
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []events.Alert
	for rows.Next() {
		var rawJSON string
		if err := rows.Scan(&rawJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var alert events.Alert
		if err := json.Unmarshal([]byte(rawJSON), &alert); err != nil {
			return nil, fmt.Errorf("unmarshal alert: %w", err)
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

// VerifyIntegrity checks the full hash chain in insertion order.
func (s *Store) VerifyIntegrity(ctx context.Context) (bool, int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json, prev_hash, hash FROM alerts ORDER BY id ASC`)
	if err != nil {
		return false, -1, fmt.Errorf("query alerts for verify: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rawJSON, prevHash, hash string
		if err := rows.Scan(&rawJSON, &prevHash, &hash); err != nil {
			return false, -1, fmt.Errorf("scan row: %w", err)
		}
		var alert events.Alert
		if err := json.Unmarshal([]byte(rawJSON), &alert); err != nil {
			return false, -1, fmt.Errorf("unmarshal alert: %w", err)
		}
		records = append(records, Record{Alert: alert, PrevHash: prevHash, Hash: hash})
	}
	if err := rows.Err(); err != nil {
		return false, -1, err
	}

	brokenAt := VerifyChain(records)
	return brokenAt == -1, brokenAt, nil
}

// Close releases the database connection and any listener socket.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, conn := range s.listeners {
		conn.Close()
	}
	s.listeners = nil
	s.mu.Unlock()

	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
	if err := s.logFile.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Store) startSocketListener() error {
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.listeners = append(s.listeners, conn)
			s.mu.Unlock()
		}
	}()

	return nil
}

// notifyListeners fans a newly appended alert out to every connected
// socket client. Dispatched in a goroutine so Append returns immediately;
// dead connections are pruned after each pass.
func (s *Store) notifyListeners(alertJSON []byte) {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	conns := make([]net.Conn, len(s.listeners))
	copy(conns, s.listeners)
	s.mu.RUnlock()

	data := make([]byte, len(alertJSON)+1)
	copy(data, alertJSON)
	data[len(alertJSON)] = '\n'

	go func() {
		var dead []net.Conn
		for _, conn := range conns {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write(data); err != nil {
				conn.Close()
				dead = append(dead, conn)
			}
		}
		if len(dead) == 0 {
			return
		}
		deadSet := make(map[net.Conn]bool, len(dead))
		for _, c := range dead {
			deadSet[c] = true
		}
		s.mu.Lock()
		live := make([]net.Conn, 0, len(s.listeners))
		for _, c := range s.listeners {
			if !deadSet[c] {
				live = append(live, c)
			}
		}
		s.listeners = live
		s.mu.Unlock()
	}()
}
