package main

import (
	"database/sql"
	"testing"
	"time"
)

func insertExternalBug(t *testing.T, db *sql.DB, subject, origin string) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO bug_reports (subject, description, severity, status, origin, created_at)
		 VALUES (?, 'filed by support', 'high', 'open', ?, ?)`,
		subject, origin, time.Now().Unix(),
	)
	if err != nil {
		t.Fatalf("insert bug failed: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func insertExternalFeature(t *testing.T, db *sql.DB, title, origin string) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO feature_suggestions (title, description, priority, status, origin, createdAt, updatedAt)
		 VALUES (?, 'requested by sales', 'medium', 'open', ?, ?, ?)`,
		title, origin, time.Now().UTC(), time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert feature failed: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func newTestMonitor(db *sql.DB) (*Monitor, *[]ExternalRecord) {
	var seen []ExternalRecord
	m := NewMonitor(db, time.Second, func(rec ExternalRecord) {
		seen = append(seen, rec)
	})
	return m, &seen
}

func TestMonitorBaselineIgnoresExistingRows(t *testing.T) {
	db := newTestDB(t)
	insertExternalBug(t, db, "Pre-existing bug", OriginExternal)
	insertExternalFeature(t, db, "Pre-existing feature", OriginExternal)

	m, seen := newTestMonitor(db)
	m.Baseline()
	m.pollOnce()

	if len(*seen) != 0 {
		t.Fatalf("expected no rows broadcast after baseline, got %d", len(*seen))
	}
}

func TestMonitorReportsNewExternalRowsAscending(t *testing.T) {
	db := newTestDB(t)
	m, seen := newTestMonitor(db)
	m.Baseline()

	first := insertExternalBug(t, db, "Crash on login", OriginExternal)
	second := insertExternalBug(t, db, "Crash on save", OriginExternal)
	m.pollOnce()

	if len(*seen) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(*seen))
	}
	if (*seen)[0].ID != first || (*seen)[1].ID != second {
		t.Fatalf("expected ascending ids %d,%d got %d,%d", first, second, (*seen)[0].ID, (*seen)[1].ID)
	}
}

func TestMonitorNeverReReportsRows(t *testing.T) {
	db := newTestDB(t)
	m, seen := newTestMonitor(db)
	m.Baseline()

	insertExternalFeature(t, db, "Add dark mode", OriginExternal)
	m.pollOnce()
	m.pollOnce()
	m.pollOnce()

	if len(*seen) != 1 {
		t.Fatalf("expected exactly one broadcast across repeated polls, got %d", len(*seen))
	}
	if (*seen)[0].Title != "Add dark mode" || (*seen)[0].Kind != KindFeature {
		t.Fatalf("unexpected record: %+v", (*seen)[0])
	}
}

func TestMonitorSkipsBotOriginRows(t *testing.T) {
	db := newTestDB(t)
	m, seen := newTestMonitor(db)
	m.Baseline()

	insertExternalBug(t, db, "Save crashes app", OriginBot)
	m.pollOnce()

	if len(*seen) != 0 {
		t.Fatalf("expected bot-origin row to be skipped, got %d broadcasts", len(*seen))
	}
}

func TestMonitorSkipsPrefixedRowsWithoutOrigin(t *testing.T) {
	db := newTestDB(t)
	m, seen := newTestMonitor(db)
	m.Baseline()

	// Rows written before the origin column existed carry only the prefix.
	insertExternalBug(t, db, BotTitlePrefix+" Old style echo", "")
	external := insertExternalBug(t, db, "Genuinely external", "")
	m.pollOnce()

	if len(*seen) != 1 {
		t.Fatalf("expected only the unprefixed row, got %d broadcasts", len(*seen))
	}
	if (*seen)[0].ID != external {
		t.Fatalf("expected row %d, got %d", external, (*seen)[0].ID)
	}
}

func TestMonitorCursorAdvancesPastSkippedRows(t *testing.T) {
	db := newTestDB(t)
	m, seen := newTestMonitor(db)
	m.Baseline()

	botRow := insertExternalBug(t, db, "Save crashes app", OriginBot)
	m.pollOnce()
	if m.cursors[TableBugReports] != botRow {
		t.Fatalf("expected cursor to advance past skipped row to %d, got %d", botRow, m.cursors[TableBugReports])
	}

	// A later poll must not resurface the skipped row.
	m.pollOnce()
	if len(*seen) != 0 {
		t.Fatalf("expected no broadcasts, got %d", len(*seen))
	}
}

func TestMonitorStoreAlertEndToEnd(t *testing.T) {
	db := newTestDB(t)
	m, seen := newTestMonitor(db)
	m.Baseline()

	// The bot stores an alert; its derived row must never echo back out.
	if err := StoreMessage(db, testMessage("M1")); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}
	if err := StoreAlert(db, AlertRecord{
		MessageID: "M1", Category: CategoryBug, Severity: SeverityHigh,
		Summary: "Save crashes app", Recommendation: "Investigate save handler",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}
	m.pollOnce()
	if len(*seen) != 0 {
		t.Fatalf("expected bot-created derived row to be skipped, got %d", len(*seen))
	}

	// An externally filed suggestion is surfaced exactly once.
	insertExternalFeature(t, db, "Add dark mode", OriginExternal)
	m.pollOnce()
	if len(*seen) != 1 {
		t.Fatalf("expected external feature broadcast, got %d", len(*seen))
	}
	m.pollOnce()
	if len(*seen) != 1 {
		t.Fatalf("expected no extra broadcast on idle poll, got %d", len(*seen))
	}
}

func TestMonitorPollFailureLeavesLaterTickWorking(t *testing.T) {
	db := newTestDB(t)
	monitor, seen := newTestMonitor(db)
	monitor.Baseline()

	id := insertExternalBug(t, db, "Crash on export", OriginExternal)

	// Hide the table so the poll query fails mid-cycle.
	if _, err := db.Exec(`ALTER TABLE bug_reports RENAME TO bug_reports_hidden`); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	monitor.pollOnce()
	if len(*seen) != 0 {
		t.Fatalf("expected no broadcast during failed poll, got %d", len(*seen))
	}
	if cursor := monitor.cursors[TableBugReports]; cursor >= id {
		t.Fatalf("cursor must not advance on a failed poll, got %d", cursor)
	}

	// Restore the table; the next cycle picks up the pending row.
	if _, err := db.Exec(`ALTER TABLE bug_reports_hidden RENAME TO bug_reports`); err != nil {
		t.Fatalf("rename back failed: %v", err)
	}
	monitor.pollOnce()
	if len(*seen) != 1 || (*seen)[0].Title != "Crash on export" {
		t.Fatalf("expected the pending row after recovery, got %+v", *seen)
	}
}
