package main

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "feedwatch-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(id string) IncomingMessage {
	return IncomingMessage{
		MessageID:   id,
		ChannelID:   "C100",
		ChannelName: "truth-engine",
		AuthorID:    "U001",
		AuthorName:  "alice",
		Content:     "App crashes when I click save",
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		URL:         "https://discord.com/channels/G1/C100/" + id,
	}
}

func TestInitDBAddsOriginColumn(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{TableBugReports, TableFeatureSuggestions} {
		var count int
		err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('`+table+`') WHERE name = 'origin'`).Scan(&count)
		if err != nil {
			t.Fatalf("query pragma_table_info failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected origin column on %s, count=%d", table, count)
		}
	}
}

func TestStoreMessageIdempotent(t *testing.T) {
	db := newTestDB(t)
	msg := testMessage("M1")

	if err := StoreMessage(db, msg); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}
	if err := StoreMessage(db, msg); err != nil {
		t.Fatalf("duplicate StoreMessage must be a no-op, got error: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM discord_messages WHERE message_id = 'M1'`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for M1, got %d", count)
	}
}

func TestStoreAlertCreatesDerivedBugReport(t *testing.T) {
	db := newTestDB(t)
	if err := StoreMessage(db, testMessage("M1")); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}

	alert := AlertRecord{
		MessageID:      "M1",
		Category:       CategoryBug,
		Severity:       SeverityHigh,
		Summary:        "Save crashes app",
		Recommendation: "Investigate save handler",
		Timestamp:      time.Now().UTC(),
	}
	if err := StoreAlert(db, alert); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}

	var subject, severity, status, origin string
	err := db.QueryRow(`SELECT subject, severity, status, origin FROM bug_reports`).
		Scan(&subject, &severity, &status, &origin)
	if err != nil {
		t.Fatalf("bug_reports query failed: %v", err)
	}
	if subject != "[Discord] Save crashes app" {
		t.Fatalf("unexpected bug subject %q", subject)
	}
	if severity != SeverityHigh || status != "open" {
		t.Fatalf("unexpected bug row severity=%s status=%s", severity, status)
	}
	if origin != OriginBot {
		t.Fatalf("expected origin=bot, got %q", origin)
	}
}

func TestStoreAlertCreatesDerivedFeatureSuggestion(t *testing.T) {
	db := newTestDB(t)
	if err := StoreMessage(db, testMessage("M2")); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}

	alert := AlertRecord{
		MessageID:      "M2",
		Category:       CategoryFeatureRequest,
		Summary:        "Add dark mode",
		Recommendation: "Users working at night",
		Timestamp:      time.Now().UTC(),
	}
	if err := StoreAlert(db, alert); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}

	var title, useCase, origin string
	err := db.QueryRow(`SELECT title, useCase, origin FROM feature_suggestions`).Scan(&title, &useCase, &origin)
	if err != nil {
		t.Fatalf("feature_suggestions query failed: %v", err)
	}
	if !strings.HasPrefix(title, BotTitlePrefix) {
		t.Fatalf("expected bot title prefix on %q", title)
	}
	if useCase != "Users working at night" {
		t.Fatalf("unexpected useCase %q", useCase)
	}
	if origin != OriginBot {
		t.Fatalf("expected origin=bot, got %q", origin)
	}
}

func TestStoreAlertDuplicateMessageIDIsNoOp(t *testing.T) {
	db := newTestDB(t)
	if err := StoreMessage(db, testMessage("M1")); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}

	alert := AlertRecord{
		MessageID: "M1",
		Category:  CategoryBug,
		Severity:  SeverityLow,
		Summary:   "First",
		Timestamp: time.Now().UTC(),
	}
	if err := StoreAlert(db, alert); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}
	alert.Summary = "Second"
	if err := StoreAlert(db, alert); err != nil {
		t.Fatalf("duplicate StoreAlert must be a no-op, got error: %v", err)
	}

	var alertCount, bugCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&alertCount); err != nil {
		t.Fatalf("alerts count failed: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM bug_reports`).Scan(&bugCount); err != nil {
		t.Fatalf("bug_reports count failed: %v", err)
	}
	if alertCount != 1 || bugCount != 1 {
		t.Fatalf("expected one alert and one bug row, got alerts=%d bugs=%d", alertCount, bugCount)
	}
}

func TestMaxRowIDEmptyTable(t *testing.T) {
	db := newTestDB(t)
	for _, table := range []string{TableBugReports, TableFeatureSuggestions} {
		maxID, err := MaxRowID(db, table)
		if err != nil {
			t.Fatalf("MaxRowID(%s) failed: %v", table, err)
		}
		if maxID != 0 {
			t.Fatalf("expected MaxRowID=0 on empty %s, got %d", table, maxID)
		}
	}
	if _, err := MaxRowID(db, "work_items"); err == nil {
		t.Fatal("expected MaxRowID to reject an unmonitored table")
	}
}

func TestRowsAfterAscendingOrder(t *testing.T) {
	db := newTestDB(t)

	for _, subject := range []string{"Crash on login", "Crash on logout", "Crash on save"} {
		if _, err := db.Exec(
			`INSERT INTO bug_reports (subject, description, severity, status, origin, created_at) VALUES (?, '', 'high', 'open', 'external', ?)`,
			subject, time.Now().Unix(),
		); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	rows, err := RowsAfter(db, TableBugReports, 1)
	if err != nil {
		t.Fatalf("RowsAfter failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after id 1, got %d", len(rows))
	}
	if rows[0].ID >= rows[1].ID {
		t.Fatalf("expected ascending ids, got %d then %d", rows[0].ID, rows[1].ID)
	}
	if rows[0].Kind != KindBug || rows[0].Severity != SeverityHigh {
		t.Fatalf("unexpected record: %+v", rows[0])
	}
}

func TestRecentAlertsJoinsMessages(t *testing.T) {
	db := newTestDB(t)
	if err := StoreMessage(db, testMessage("M1")); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}
	if err := StoreAlert(db, AlertRecord{
		MessageID: "M1",
		Category:  CategoryComplaint,
		Severity:  SeverityMedium,
		Summary:   "Slow page loads",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}

	alerts, err := RecentAlerts(db, 24)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 recent alert, got %d", len(alerts))
	}
	if alerts[0].AuthorName != "alice" || alerts[0].ChannelName != "truth-engine" {
		t.Fatalf("expected joined message fields, got %+v", alerts[0])
	}
}

func TestSearchAlertsFilters(t *testing.T) {
	db := newTestDB(t)
	if err := StoreMessage(db, testMessage("M1")); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}
	if err := StoreAlert(db, AlertRecord{
		MessageID: "M1", Category: CategoryBug, Severity: SeverityHigh,
		Summary: "Save crashes app", Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}

	hits, err := SearchAlerts(db, "crashes", SearchFilters{Category: CategoryBug})
	if err != nil {
		t.Fatalf("SearchAlerts failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}

	misses, err := SearchAlerts(db, "crashes", SearchFilters{Category: CategoryPraise})
	if err != nil {
		t.Fatalf("SearchAlerts failed: %v", err)
	}
	if len(misses) != 0 {
		t.Fatalf("expected no hits for wrong category, got %d", len(misses))
	}
}

func TestDailyCategoryCounts(t *testing.T) {
	db := newTestDB(t)
	for i, category := range []string{CategoryBug, CategoryBug, CategoryPraise} {
		msg := testMessage("M" + string(rune('1'+i)))
		if err := StoreMessage(db, msg); err != nil {
			t.Fatalf("StoreMessage failed: %v", err)
		}
		if err := StoreAlert(db, AlertRecord{
			MessageID: msg.MessageID, Category: category, Summary: "s", Timestamp: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("StoreAlert failed: %v", err)
		}
	}

	counts, err := DailyCategoryCounts(db)
	if err != nil {
		t.Fatalf("DailyCategoryCounts failed: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(counts))
	}
	if counts[0].Category != CategoryBug || counts[0].Count != 2 {
		t.Fatalf("expected bug=2 first, got %+v", counts[0])
	}
}

func TestChannelStats(t *testing.T) {
	db := newTestDB(t)

	for i, author := range []string{"U001", "U001", "U002"} {
		msg := testMessage("M" + string(rune('1'+i)))
		msg.AuthorID = author
		if err := StoreMessage(db, msg); err != nil {
			t.Fatalf("StoreMessage failed: %v", err)
		}
	}
	other := testMessage("M9")
	other.ChannelName = "support"
	if err := StoreMessage(db, other); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}
	if err := StoreAlert(db, AlertRecord{
		MessageID: "M1", Category: CategoryBug, Summary: "s", Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("StoreAlert failed: %v", err)
	}

	stats, err := ChannelStats(db)
	if err != nil {
		t.Fatalf("ChannelStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(stats))
	}
	if stats[0].ChannelName != "truth-engine" {
		t.Fatalf("expected busiest channel first, got %+v", stats[0])
	}
	if stats[0].MessageCount != 3 || stats[0].UniqueAuthors != 2 || stats[0].AlertCount != 1 {
		t.Fatalf("unexpected truth-engine stats %+v", stats[0])
	}
	if stats[1].ChannelName != "support" || stats[1].MessageCount != 1 {
		t.Fatalf("unexpected support stats %+v", stats[1])
	}
}
