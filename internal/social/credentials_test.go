package social

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGCredentialStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := &PGCredentialStore{DB: db}

	mock.ExpectQuery("SELECT value FROM public.credentials").
		WithArgs("TWITTER_API_KEY").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("ck"))

	v, err := store.Get(context.Background(), "TWITTER_API_KEY")
	if err != nil {
		t.Fatalf("get err: %v", err)
	}
	if v != "ck" {
		t.Fatalf("got %q", v)
	}

	// Missing key reads as empty, not as an error.
	mock.ExpectQuery("SELECT value FROM public.credentials").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, err = store.Get(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("get err: %v", err)
	}
	if v != "" {
		t.Fatalf("expected empty, got %q", v)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGCredentialStore_Set(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := &PGCredentialStore{DB: db}

	mock.ExpectExec("INSERT INTO public.credentials").
		WithArgs("GBP_ACCESS_TOKEN", "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Set(context.Background(), "GBP_ACCESS_TOKEN", "tok"); err != nil {
		t.Fatalf("set err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCredentialStatus(t *testing.T) {
	creds := NewMemCredentials(map[string]string{
		"TELEGRAM_BOT_TOKEN":   "b",
		"TELEGRAM_CHAT_ID":     "c",
		"FB_PAGE_ACCESS_TOKEN": "tok",
		// FB_PAGE_ID deliberately absent.
	})

	status := CredentialStatus(context.Background(), creds)
	if len(status) != len(AllPlatforms()) {
		t.Fatalf("status should cover all platforms, got %d", len(status))
	}
	if !status[Telegram] {
		t.Fatal("telegram should be configured")
	}
	if status[Facebook] {
		t.Fatal("facebook should be unconfigured without FB_PAGE_ID")
	}
	// Manual platforms never read as configured.
	if status[Skool] || status[Patreon] {
		t.Fatal("skool/patreon have no credentials to configure")
	}
}
