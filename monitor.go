package main

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"
)

var monitoredTables = []string{TableBugReports, TableFeatureSuggestions}

// Monitor polls the derived tables for rows inserted by other systems and
// hands them to the broadcast callback. It owns one high-water-mark cursor
// per table; cursors live for the process lifetime only, so a restart
// re-baselines to the current table maximum.
type Monitor struct {
	db        *sql.DB
	interval  time.Duration
	broadcast func(ExternalRecord)
	cursors   map[string]int64
}

func NewMonitor(db *sql.DB, interval time.Duration, broadcast func(ExternalRecord)) *Monitor {
	return &Monitor{
		db:        db,
		interval:  interval,
		broadcast: broadcast,
		cursors:   make(map[string]int64, len(monitoredTables)),
	}
}

// Baseline sets each cursor to the table's current max id so pre-existing
// rows are never replayed. A failed query baselines that table to 0, which
// only risks replaying rows that existed before a cold start.
func (m *Monitor) Baseline() {
	for _, table := range monitoredTables {
		maxID, err := MaxRowID(m.db, table)
		if err != nil {
			log.Printf("monitor baseline error table=%s: %v", table, err)
			maxID = 0
		}
		m.cursors[table] = maxID
		log.Printf("monitor baseline table=%s cursor=%d", table, maxID)
	}
}

// Run baselines the cursors and polls on a fixed interval until ctx is
// cancelled. Ticks are consumed by this single goroutine, so a poll that
// outlives the interval delays (never overlaps) the next one.
func (m *Monitor) Run(ctx context.Context) {
	m.Baseline()
	log.Printf("monitor started interval=%s tables=%s", m.interval, strings.Join(monitoredTables, ","))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("monitor stopped")
			return
		case <-ticker.C:
			m.pollOnce()
		}
	}
}

// pollOnce checks every monitored table for new rows. The cursor is advanced
// past each row before the row is acted on, so a failure later in the batch
// never causes earlier rows to be reprocessed. Any error ends the cycle; the
// next tick retries independently.
func (m *Monitor) pollOnce() {
	for _, table := range monitoredTables {
		rows, err := RowsAfter(m.db, table, m.cursors[table])
		if err != nil {
			log.Printf("monitor poll error table=%s: %v", table, err)
			return
		}
		for _, rec := range rows {
			if rec.ID > m.cursors[table] {
				m.cursors[table] = rec.ID
			}
			if isSelfAuthored(rec) {
				continue
			}
			log.Printf("monitor new external row table=%s id=%d title=%q", table, rec.ID, rec.Title)
			m.broadcast(rec)
		}
	}
}

// isSelfAuthored reports whether a derived row is an echo of an alert this
// bot created. The origin column is authoritative; the title prefix covers
// rows written before the column existed.
func isSelfAuthored(rec ExternalRecord) bool {
	if rec.Origin == OriginBot {
		return true
	}
	return strings.HasPrefix(rec.Title, BotTitlePrefix)
}
