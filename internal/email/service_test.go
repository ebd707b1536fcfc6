package email

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsbga/internal/config"
	"eventsbga/internal/events"
	"eventsbga/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

func newTestService(rdb *redis.Client) *Service {
	s := New(rdb, config.EmailConfig{
		From:     "noreply@eventsbga.co",
		FromName: "Eventos BGA",
		SMTPHost: "smtp.test.com",
		SMTPPort: "587",
	})
	s.retryDelay = 0
	return s
}

func testEvent(status string) *events.Event {
	return &events.Event{
		ID:        "9e8d7c6b-5a4f-4e3d-2c1b-0a9f8e7d6c5b",
		Title:     "Jazz night",
		Category:  "music",
		EventDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Hour:      19,
		Status:    status,
	}
}

func jobPayload(t *testing.T, job Job) string {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return string(data)
}

func TestSend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	svc := newTestService(db)

	err := svc.Send(ctx, TypeEventRequested, "venue@example.com", "Hello", "Test body")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetErr(assert.AnError)

	svc := newTestService(db)

	err := svc.Send(ctx, TypeEventRequested, "venue@example.com", "Hello", "Test body")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendEventRequested(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `"type":"event_requested".*Friday, Mar 14, 2025 at 19:00`).SetVal(1)

	svc := newTestService(db)

	err := svc.SendEventRequested(ctx, "venue@example.com", "Teatro Santander", testEvent(events.StatusPending))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendEventDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("approved", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.Regexp().ExpectLPush("emails", `"type":"event_approved"`).SetVal(1)

		err := newTestService(db).SendEventDecision(ctx, "artist@example.com", "Teatro Santander", testEvent(events.StatusApproved))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejected", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.Regexp().ExpectLPush("emails", `"type":"event_rejected".*No reason given`).SetVal(1)

		err := newTestService(db).SendEventDecision(ctx, "artist@example.com", "Teatro Santander", testEvent(events.StatusRejected))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSendEventRequested_FoldsLineBreaksInTitle(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `"subject":"New event request - Jazz night Bcc: victim@evil.test"`).SetVal(1)

	e := testEvent(events.StatusPending)
	e.Title = "Jazz night\r\nBcc: victim@evil.test"

	err := newTestService(db).SendEventRequested(ctx, "venue@example.com", "Teatro Santander", e)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildMessage_HeaderInjection(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)

	msg := string(svc.buildMessage(Job{
		To:      "venue@example.com\nCc: other@evil.test",
		Subject: "New event request - Jazz night\r\nBcc: victim@evil.test",
		Body:    "Body",
	}))

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, "Body", body)

	lines := strings.Split(headers, "\r\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.NotContains(t, line, "\n")
		assert.False(t, strings.HasPrefix(line, "Bcc:"), line)
		assert.False(t, strings.HasPrefix(line, "Cc:"), line)
	}
	assert.Equal(t, "Subject: New event request - Jazz night Bcc: victim@evil.test", lines[2])
	assert.Equal(t, "To: venue@example.com Cc: other@evil.test", lines[1])
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	db, _ := redismock.NewClientMock()
	svc := newTestService(db)

	msg := string(svc.buildMessage(Job{To: "artist@example.com", Subject: "Función aprobada", Body: "ok"}))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}

func TestProcessNext_Delivers(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	job := Job{Type: TypeEventApproved, To: "artist@example.com", Subject: "Hi", Body: "Body"}
	mock.ExpectBRPop(popTimeout, "emails").SetVal([]string{"emails", jobPayload(t, job)})

	svc := newTestService(db)
	var sent []Job
	svc.send = func(j Job) error {
		sent = append(sent, j)
		return nil
	}

	svc.processNext(ctx)

	require.Len(t, sent, 1)
	assert.Equal(t, "artist@example.com", sent[0].To)
	assert.Equal(t, 1, sent[0].Tries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_Retries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	job := Job{Type: TypeEventApproved, To: "artist@example.com", Subject: "Hi"}
	mock.ExpectBRPop(popTimeout, "emails").SetVal([]string{"emails", jobPayload(t, job)})
	mock.Regexp().ExpectLPush("emails", `"tries":1`).SetVal(1)

	svc := newTestService(db)
	svc.send = func(Job) error { return errors.New("connection refused") }

	svc.processNext(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_MovesToFailedQueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	job := Job{Type: TypeEventApproved, To: "artist@example.com", Subject: "Hi", Tries: maxAttempts - 1}
	mock.ExpectBRPop(popTimeout, "emails").SetVal([]string{"emails", jobPayload(t, job)})
	mock.Regexp().ExpectLPush("emails:failed", `connection refused`).SetVal(1)

	svc := newTestService(db)
	svc.send = func(Job) error { return errors.New("connection refused") }

	svc.processNext(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_EmptyQueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectBRPop(popTimeout, "emails").RedisNil()

	svc := newTestService(db)
	svc.send = func(Job) error {
		t.Fatal("nothing should be sent")
		return nil
	}

	svc.processNext(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectLLen("emails").SetVal(5)

	svc := newTestService(db)

	length := svc.QueueLength(ctx)
	assert.Equal(t, int64(5), length)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueLengthError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectLLen("emails").SetErr(assert.AnError)

	svc := newTestService(db)

	assert.Equal(t, int64(0), svc.QueueLength(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
