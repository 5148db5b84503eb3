package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Monitored derived tables.
const (
	TableBugReports         = "bug_reports"
	TableFeatureSuggestions = "feature_suggestions"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// All table creation is additive: existing data is never touched.
	schema := `
	CREATE TABLE IF NOT EXISTS discord_messages (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id   TEXT UNIQUE NOT NULL,
		channel_id   TEXT NOT NULL,
		channel_name TEXT NOT NULL,
		author_id    TEXT NOT NULL,
		author_name  TEXT NOT NULL,
		content      TEXT NOT NULL,
		timestamp    DATETIME NOT NULL,
		message_url  TEXT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON discord_messages(channel_name);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON discord_messages(timestamp DESC);

	CREATE TABLE IF NOT EXISTS alerts (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id     TEXT NOT NULL,
		category       TEXT NOT NULL,
		severity       TEXT,
		summary        TEXT NOT NULL,
		recommendation TEXT,
		timestamp      DATETIME NOT NULL,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (message_id) REFERENCES discord_messages(message_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_message ON alerts(message_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_category ON alerts(category);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp DESC);

	CREATE TABLE IF NOT EXISTS bug_reports (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		subject     TEXT NOT NULL,
		description TEXT,
		severity    TEXT DEFAULT 'medium',
		status      TEXT DEFAULT 'open',
		url         TEXT DEFAULT '',
		created_at  INTEGER
	);

	CREATE TABLE IF NOT EXISTS feature_suggestions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title       TEXT NOT NULL,
		description TEXT,
		useCase     TEXT DEFAULT '',
		priority    TEXT DEFAULT 'medium',
		status      TEXT DEFAULT 'open',
		url         TEXT DEFAULT '',
		createdAt   DATETIME,
		updatedAt   DATETIME
	);
	`
	if _, err = db.Exec(schema); err != nil {
		return nil, err
	}

	// Migration: add origin column to derived tables if missing. Rows written
	// before the column existed fall back to the title-prefix check.
	for _, table := range []string{TableBugReports, TableFeatureSuggestions} {
		var colCount int
		_ = db.QueryRow(
			fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = 'origin'`, table),
		).Scan(&colCount)
		if colCount == 0 {
			_, _ = db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN origin TEXT DEFAULT '%s'`, table, OriginExternal))
		}
	}

	return db, nil
}

// StoreMessage inserts an incoming message, ignoring duplicates by
// message_id. Re-delivered messages are a logged no-op, not an error.
func StoreMessage(db *sql.DB, msg IncomingMessage) error {
	res, err := db.Exec(
		`INSERT OR IGNORE INTO discord_messages
		 (message_id, channel_id, channel_name, author_id, author_name, content, timestamp, message_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.MessageID, msg.ChannelID, msg.ChannelName, msg.AuthorID, msg.AuthorName,
		msg.Content, msg.Timestamp, msg.URL,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("message already stored message_id=%s", msg.MessageID)
	}
	return nil
}

// StoreAlert inserts the alert row and, for bug / feature_request
// categories, the derived row tagged with the bot origin and title prefix.
// At most one alert per message id; a duplicate is a logged no-op.
func StoreAlert(db *sql.DB, alert AlertRecord) error {
	res, err := db.Exec(
		`INSERT OR IGNORE INTO alerts (message_id, category, severity, summary, recommendation, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		alert.MessageID, alert.Category, nullIfEmpty(alert.Severity),
		alert.Summary, alert.Recommendation, alert.Timestamp,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("alert already stored message_id=%s", alert.MessageID)
		return nil
	}

	switch alert.Category {
	case CategoryBug:
		return insertBugReport(db, alert)
	case CategoryFeatureRequest:
		return insertFeatureSuggestion(db, alert)
	}
	return nil
}

func insertBugReport(db *sql.DB, alert AlertRecord) error {
	severity := alert.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	_, err := db.Exec(
		`INSERT INTO bug_reports (subject, description, severity, status, origin, created_at)
		 VALUES (?, ?, ?, 'open', ?, ?)`,
		BotTitlePrefix+" "+alert.Summary,
		fmt.Sprintf("Original Message ID: %s\nRecommendation: %s", alert.MessageID, alert.Recommendation),
		severity, OriginBot, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("creating bug report: %w", err)
	}
	log.Printf("bug report created for message_id=%s", alert.MessageID)
	return nil
}

func insertFeatureSuggestion(db *sql.DB, alert AlertRecord) error {
	now := time.Now()
	_, err := db.Exec(
		`INSERT INTO feature_suggestions (title, description, useCase, priority, status, origin, createdAt, updatedAt)
		 VALUES (?, ?, ?, 'medium', 'open', ?, ?, ?)`,
		BotTitlePrefix+" "+alert.Summary,
		fmt.Sprintf("Original Message ID: %s", alert.MessageID),
		alert.Recommendation, OriginBot, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating feature suggestion: %w", err)
	}
	log.Printf("feature suggestion created for message_id=%s", alert.MessageID)
	return nil
}

// MaxRowID returns the current maximum id in a monitored table, 0 when empty.
func MaxRowID(db *sql.DB, table string) (int64, error) {
	if err := checkMonitoredTable(table); err != nil {
		return 0, err
	}
	var maxID int64
	err := db.QueryRow(fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, table)).Scan(&maxID)
	return maxID, err
}

// RowsAfter returns all rows with id > afterID, ascending by id.
func RowsAfter(db *sql.DB, table string, afterID int64) ([]ExternalRecord, error) {
	if err := checkMonitoredTable(table); err != nil {
		return nil, err
	}

	if table == TableFeatureSuggestions {
		rows, err := db.Query(
			`SELECT id, title, COALESCE(description, ''), COALESCE(priority, ''),
			        COALESCE(status, ''), COALESCE(url, ''), COALESCE(origin, ''), createdAt
			 FROM feature_suggestions WHERE id > ? ORDER BY id ASC`,
			afterID,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []ExternalRecord
		for rows.Next() {
			rec := ExternalRecord{Kind: KindFeature}
			var createdAt sql.NullTime
			if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Severity,
				&rec.Status, &rec.URL, &rec.Origin, &createdAt); err != nil {
				return nil, err
			}
			if createdAt.Valid {
				rec.CreatedAt = createdAt.Time
			}
			out = append(out, rec)
		}
		return out, rows.Err()
	}

	rows, err := db.Query(
		`SELECT id, subject, COALESCE(description, ''), COALESCE(severity, ''),
		        COALESCE(status, ''), COALESCE(url, ''), COALESCE(origin, ''), COALESCE(created_at, 0)
		 FROM bug_reports WHERE id > ? ORDER BY id ASC`,
		afterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExternalRecord
	for rows.Next() {
		rec := ExternalRecord{Kind: KindBug}
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Severity,
			&rec.Status, &rec.URL, &rec.Origin, &createdAt); err != nil {
			return nil, err
		}
		if createdAt > 0 {
			rec.CreatedAt = time.Unix(createdAt, 0)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func checkMonitoredTable(table string) error {
	switch table {
	case TableBugReports, TableFeatureSuggestions:
		return nil
	}
	return fmt.Errorf("unknown monitored table '%s'", table)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- Analytics ---

type RecentAlert struct {
	AlertRecord
	AuthorName  string
	ChannelName string
	Content     string
	MessageURL  string
}

func RecentAlerts(db *sql.DB, hours int) ([]RecentAlert, error) {
	rows, err := db.Query(
		`SELECT a.id, a.message_id, a.category, COALESCE(a.severity, ''), a.summary,
		        COALESCE(a.recommendation, ''), a.timestamp,
		        m.author_name, m.channel_name, m.content, COALESCE(m.message_url, '')
		 FROM alerts a
		 JOIN discord_messages m ON a.message_id = m.message_id
		 WHERE a.timestamp > datetime('now', ? || ' hours')
		 ORDER BY a.timestamp DESC`,
		fmt.Sprintf("-%d", hours),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecentAlert
	for rows.Next() {
		var a RecentAlert
		if err := rows.Scan(
			&a.ID, &a.MessageID, &a.Category, &a.Severity, &a.Summary,
			&a.Recommendation, &a.Timestamp,
			&a.AuthorName, &a.ChannelName, &a.Content, &a.MessageURL,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type SearchFilters struct {
	Category string
	Severity string
	Channel  string
}

func SearchAlerts(db *sql.DB, query string, filters SearchFilters) ([]RecentAlert, error) {
	sqlText := `SELECT a.id, a.message_id, a.category, COALESCE(a.severity, ''), a.summary,
	                   COALESCE(a.recommendation, ''), a.timestamp,
	                   m.author_name, m.channel_name, m.content, COALESCE(m.message_url, '')
	            FROM alerts a
	            JOIN discord_messages m ON a.message_id = m.message_id
	            WHERE 1=1`
	var args []any

	if query != "" {
		sqlText += ` AND (m.content LIKE ? OR a.summary LIKE ?)`
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern)
	}
	if filters.Category != "" {
		sqlText += ` AND a.category = ?`
		args = append(args, filters.Category)
	}
	if filters.Severity != "" {
		sqlText += ` AND a.severity = ?`
		args = append(args, filters.Severity)
	}
	if filters.Channel != "" {
		sqlText += ` AND m.channel_name = ?`
		args = append(args, filters.Channel)
	}
	sqlText += ` ORDER BY a.timestamp DESC LIMIT 100`

	rows, err := db.Query(sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecentAlert
	for rows.Next() {
		var a RecentAlert
		if err := rows.Scan(
			&a.ID, &a.MessageID, &a.Category, &a.Severity, &a.Summary,
			&a.Recommendation, &a.Timestamp,
			&a.AuthorName, &a.ChannelName, &a.Content, &a.MessageURL,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type CategoryCount struct {
	Category string
	Count    int
}

// DailyCategoryCounts returns last-24h alert counts per category, most
// frequent first.
func DailyCategoryCounts(db *sql.DB) ([]CategoryCount, error) {
	rows, err := db.Query(
		`SELECT category, COUNT(*) as count
		 FROM alerts
		 WHERE timestamp > datetime('now', '-1 day')
		 GROUP BY category
		 ORDER BY count DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type ChannelStat struct {
	ChannelName   string
	MessageCount  int
	UniqueAuthors int
	AlertCount    int
}

func ChannelStats(db *sql.DB) ([]ChannelStat, error) {
	rows, err := db.Query(
		`SELECT m.channel_name,
		        COUNT(*) as message_count,
		        COUNT(DISTINCT m.author_id) as unique_authors,
		        COUNT(a.id) as alert_count
		 FROM discord_messages m
		 LEFT JOIN alerts a ON m.message_id = a.message_id
		 GROUP BY m.channel_name
		 ORDER BY message_count DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChannelStat
	for rows.Next() {
		var s ChannelStat
		if err := rows.Scan(&s.ChannelName, &s.MessageCount, &s.UniqueAuthors, &s.AlertCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
