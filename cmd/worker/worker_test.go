package main

import (
	"context"
	"encoding/json"
	"net/smtp"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	"github.com/mark3748/sla-engine-go/internal/engine"
	"github.com/mark3748/sla-engine-go/internal/ratelimit"
)

func TestNotifyEscalation(t *testing.T) {
	var captured struct {
		addr string
		from string
		to   []string
		msg  string
	}
	smtpSendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured = struct {
			addr string
			from string
			to   []string
			msg  string
		}{addr, from, to, string(msg)}
		return nil
	}
	defer func() { smtpSendMail = smtp.SendMail }()

	c := Config{SMTPHost: "smtp", SMTPPort: "25", SMTPFrom: "from@example.com", EscalationEmail: "ops@example.com"}
	ev := engine.Event{
		TimerID:  "11111111-1111-1111-1111-111111111111",
		TicketID: "HD-42",
		Metric:   "resolution",
		LevelID:  "22222222-2222-2222-2222-222222222222",
		Order:    2,
		Target:   "Senior Manager",
		FiredAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	db := &execDB{}
	if err := notifyEscalation(context.Background(), db, c, nil, ev); err != nil {
		t.Fatalf("notifyEscalation: %v", err)
	}
	if captured.addr != "smtp:25" || captured.from != "from@example.com" || captured.to[0] != "ops@example.com" {
		t.Fatalf("unexpected send params: %+v", captured)
	}
	if !strings.Contains(captured.msg, "escalation level 2") {
		t.Fatalf("unexpected message: %s", captured.msg)
	}
	if !strings.Contains(captured.msg, "Senior Manager") {
		t.Fatalf("missing target in message: %s", captured.msg)
	}
	if db.lastSQL == "" || !strings.Contains(strings.ToLower(db.lastSQL), "escalation_notifications") {
		t.Fatalf("expected insert into escalation_notifications, got %q", db.lastSQL)
	}
}

func TestNotifyEscalationThrottled(t *testing.T) {
	sent := 0
	smtpSendMail = func(string, smtp.Auth, string, []string, []byte) error {
		sent++
		return nil
	}
	defer func() { smtpSendMail = smtp.SendMail }()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lim := ratelimit.New(rdb, 1, time.Hour, "notify")

	c := Config{SMTPHost: "smtp", SMTPPort: "25", SMTPFrom: "from@example.com", EscalationEmail: "ops@example.com"}
	ev := engine.Event{TimerID: "t1", TicketID: "HD-1", Metric: "response", LevelID: "l1", Order: 1, Target: "Manager"}
	db := &execDB{}
	for i := 0; i < 3; i++ {
		if err := notifyEscalation(context.Background(), db, c, lim, ev); err != nil {
			t.Fatalf("notifyEscalation: %v", err)
		}
	}
	if sent != 1 {
		t.Fatalf("expected 1 send under limit, got %d", sent)
	}
}

func TestNotifyEscalationRejectsBadAddress(t *testing.T) {
	c := Config{SMTPFrom: "from@example.com", EscalationEmail: "not-an-address"}
	if err := notifyEscalation(context.Background(), nil, c, nil, engine.Event{}); err == nil {
		t.Fatal("expected error for invalid escalation address")
	}
}

func TestProcessQueueJob(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := Config{SMTPFrom: "from@example.com", EscalationEmail: "ops@example.com"}
	job := Job{Type: "escalation", Data: json.RawMessage(`{"timer_id":"t1","ticket_id":"HD-1","metric":"response","level_id":"l1","order":1,"target":"Manager"}`)}
	payload, _ := json.Marshal(job)
	if err := rdb.LPush(context.Background(), "jobs", payload).Err(); err != nil {
		t.Fatalf("lpush: %v", err)
	}
	var got engine.Event
	notify := func(ctx context.Context, db apppkg.DB, c Config, lim *ratelimit.Limiter, ev engine.Event) error {
		got = ev
		return nil
	}
	if err := processQueueJob(context.Background(), &execDB{}, c, rdb, nil, notify); err != nil {
		t.Fatalf("processQueueJob: %v", err)
	}
	if got.TicketID != "HD-1" || got.Order != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}
}

type execDB struct {
	lastSQL  string
	lastArgs []any
}

func (f *execDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (f *execDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return execRow{} }
func (f *execDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return pgconn.CommandTag{}, nil
}

type execRow struct{}

func (execRow) Scan(dest ...any) error { return pgx.ErrNoRows }
