package social

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGAuditLog_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	audit := &PGAuditLog{DB: db}

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO public.social_post_log").
		WithArgs(ts, "twitter", "hello", AuditSuccess, "", "api").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = audit.Record(context.Background(), AuditRecord{
		Timestamp: ts,
		Platform:  Twitter,
		Preview:   "hello",
		Status:    AuditSuccess,
		Actor:     "api",
	})
	if err != nil {
		t.Fatalf("record err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGAuditLog_LastPostTimes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	audit := &PGAuditLog{DB: db}

	ts := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT platform, MAX\\(posted_at\\)").
		WillReturnRows(sqlmock.NewRows([]string{"platform", "max"}).AddRow("facebook", ts))

	times, err := audit.LastPostTimes(context.Background())
	if err != nil {
		t.Fatalf("query err: %v", err)
	}
	if len(times) != len(AllPlatforms()) {
		t.Fatalf("expected entry for every platform, got %d", len(times))
	}
	if times[Facebook] == nil || !times[Facebook].Equal(ts) {
		t.Fatalf("facebook time = %v", times[Facebook])
	}
	// Platforms with no successful post report nil, not a zero time.
	if times[Twitter] != nil {
		t.Fatalf("twitter should be nil, got %v", times[Twitter])
	}
}

func TestContentPreview(t *testing.T) {
	short := "a short post"
	if got := contentPreview(short); got != short {
		t.Fatalf("short preview changed: %q", got)
	}
	long := strings.Repeat("é", 150)
	got := contentPreview(long)
	if []rune(got)[0] != 'é' || len([]rune(got)) != 103 || !strings.HasSuffix(got, "...") {
		t.Fatalf("long preview wrong: %q (%d runes)", got, len([]rune(got)))
	}
}
