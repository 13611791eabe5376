package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var channelConfigRowColumns = []string{
	"instance_name", "channel", "enabled", "events", "settings", "created_at", "updated_at",
}

func TestQuerySetChannelConfig_Webhook(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rec := &model.ChannelRecord{
		InstanceName: "shop-42",
		Channel:      model.ChannelWebhook,
		ChannelConfig: model.ChannelConfig{
			Enabled: true,
			Events:  []string{"messages.upsert"},
			Webhook: &model.WebhookSettings{URL: "https://hooks.example.com", ByEvents: true},
		},
	}
	mock.ExpectQuery("INSERT INTO channel_configs").
		WithArgs("shop-42", "webhook", true, pq.Array([]string{"messages.upsert"}),
			`{"url":"https://hooks.example.com","byEvents":true,"base64":false}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := querySetChannelConfig(context.Background(), db, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestQuerySetChannelConfig_NoSettings(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	rec := &model.ChannelRecord{InstanceName: "shop-42", Channel: model.ChannelNATS}
	mock.ExpectQuery("INSERT INTO channel_configs").
		WithArgs("shop-42", "nats", false, pq.Array([]string{}), nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := querySetChannelConfig(context.Background(), db, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryGetChannelConfig(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM channel_configs WHERE instance_name = \\$1 AND channel = \\$2").
		WithArgs("shop-42", "pusher").
		WillReturnRows(sqlmock.NewRows(channelConfigRowColumns).
			AddRow("shop-42", "pusher", true, []byte(`{connection.update,messages.upsert}`),
				[]byte(`{"appId":"1","key":"k","secret":"s","cluster":"eu","useTLS":true}`), now, now))

	rec, err := queryGetChannelConfig(context.Background(), db, "shop-42", model.ChannelPusher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Enabled || len(rec.Events) != 2 || rec.Events[1] != "messages.upsert" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Pusher == nil || rec.Pusher.Cluster != "eu" || !rec.Pusher.UseTLS {
		t.Fatalf("unexpected pusher settings: %+v", rec.Pusher)
	}
	if rec.Webhook != nil {
		t.Fatal("pusher record must not carry webhook settings")
	}
}

func TestQueryGetChannelConfig_EmptyEvents(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM channel_configs").
		WithArgs("shop-42", "websocket").
		WillReturnRows(sqlmock.NewRows(channelConfigRowColumns).
			AddRow("shop-42", "websocket", true, []byte(`{}`), nil, now, now))

	rec, err := queryGetChannelConfig(context.Background(), db, "shop-42", model.ChannelWebsocket)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Events != nil {
		t.Fatalf("expected nil events (all), got %v", rec.Events)
	}
}

func TestQueryGetChannelConfig_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM channel_configs").
		WithArgs("nobody", "webhook").
		WillReturnError(sql.ErrNoRows)

	if _, err := queryGetChannelConfig(context.Background(), db, "nobody", model.ChannelWebhook); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryGetChannelConfig_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM channel_configs").
		WithArgs("shop-42", "webhook").
		WillReturnError(errors.New("connection refused"))

	_, err := queryGetChannelConfig(context.Background(), db, "shop-42", model.ChannelWebhook)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected a non-NotFound error, got %v", err)
	}
}

func TestQueryListChannelConfigs(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM channel_configs ORDER BY instance_name, channel").
		WillReturnRows(sqlmock.NewRows(channelConfigRowColumns).
			AddRow("a", "nats", true, []byte(`{}`), nil, now, now).
			AddRow("a", "webhook", false, []byte(`{call}`), []byte(`{"url":"http://x"}`), now, now))

	recs, err := queryListChannelConfigs(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].Webhook == nil || recs[1].Webhook.URL != "http://x" {
		t.Fatalf("unexpected webhook record: %+v", recs[1])
	}
}

func TestQueryListChannelConfigs_BadSettings(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM channel_configs ORDER BY").
		WillReturnRows(sqlmock.NewRows(channelConfigRowColumns).
			AddRow("a", "webhook", true, []byte(`{}`), []byte(`not json`), now, now))

	if _, err := queryListChannelConfigs(context.Background(), db); err == nil {
		t.Fatal("expected error for corrupt settings")
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	if got.MaxOpenConns != 10 || got.MaxIdleConns != 2 || got.ConnMaxLifetime != 5*time.Minute || got.ConnectTimeout != 10*time.Second {
		t.Errorf("defaults = %+v", got)
	}

	got = Options{MaxOpenConns: 1}.withDefaults()
	if got.MaxIdleConns != 1 {
		t.Errorf("MaxIdleConns = %d, want capped at MaxOpenConns", got.MaxIdleConns)
	}

	got = Options{MaxOpenConns: 40, MaxIdleConns: 8}.withDefaults()
	if got.MaxOpenConns != 40 || got.MaxIdleConns != 8 {
		t.Errorf("explicit values overridden: %+v", got)
	}
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New(context.Background(), "postgres://nobody@127.0.0.1:1/switchboard?sslmode=disable", Options{ConnectTimeout: time.Second})
	if err == nil {
		t.Fatal("expected ping error")
	}
}
