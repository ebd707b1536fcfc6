package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"eventsbga/internal/config"
	"eventsbga/internal/events"
	"eventsbga/internal/logger"
	"eventsbga/internal/metrics"
)

const (
	queueKey    = "emails"
	failedKey   = "emails:failed"
	maxAttempts = 3
	popTimeout  = 2 * time.Second
)

const (
	TypeEventRequested = "event_requested"
	TypeEventApproved  = "event_approved"
	TypeEventRejected  = "event_rejected"
)

type Job struct {
	Type    string    `json:"type"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues e-mails on a Redis list and delivers them over SMTP from a
// single worker started with Start.
type Service struct {
	redis      *redis.Client
	cfg        config.EmailConfig
	send       func(Job) error
	retryDelay time.Duration
}

func New(rdb *redis.Client, cfg config.EmailConfig) *Service {
	s := &Service{
		redis:      rdb,
		cfg:        cfg,
		retryDelay: 5 * time.Second,
	}
	s.send = s.sendSMTP
	return s
}

func (s *Service) Send(ctx context.Context, jobType, to, subject, body string) error {
	job := Job{
		Type:    jobType,
		To:      headerValue(to),
		Subject: headerValue(subject),
		Body:    body,
		Created: time.Now(),
	}

	if err := s.push(ctx, queueKey, job); err != nil {
		logger.Error("failed to queue email", "to", to, "type", jobType, "error", err)
		return err
	}

	logger.Info("email queued", "to", to, "type", jobType)
	return nil
}

func (s *Service) push(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}
	return s.redis.LPush(ctx, key, string(data)).Err()
}

// Start runs the delivery loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, popTimeout, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Warn("email queue pop failed", "error", err)
			time.Sleep(popTimeout)
		}
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad email job", "error", err)
		return
	}

	job.Tries++
	if err := s.send(job); err != nil {
		logger.Error("failed to send email", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxAttempts {
			s.retry(ctx, job)
		} else {
			metrics.RecordEmail(job.Type, "failed")
			s.saveFailed(ctx, job, err)
		}
		return
	}

	metrics.RecordEmail(job.Type, "sent")
	logger.Info("email sent", "to", job.To, "type", job.Type)
}

func (s *Service) retry(ctx context.Context, job Job) {
	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}

	// Requeue even when shutting down so the job is not lost.
	if err := s.push(context.WithoutCancel(ctx), queueKey, job); err != nil {
		logger.Error("failed to requeue email", "to", job.To, "error", err)
		return
	}
	metrics.RecordEmail(job.Type, "retried")
}

func (s *Service) saveFailed(ctx context.Context, job Job, cause error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	if err := s.push(context.WithoutCancel(ctx), failedKey, failed); err != nil {
		logger.Error("failed to store failed email", "to", job.To, "error", err)
		return
	}
	logger.Warn("email moved to failed queue", "to", job.To, "attempts", job.Tries)
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue folds line breaks so a value cannot start a new header line.
func headerValue(v string) string {
	return strings.TrimSpace(headerBreaks.Replace(v))
}

func (s *Service) buildMessage(job Job) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", headerValue(s.cfg.FromName)), headerValue(s.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(job.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(job.Subject)))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n" + job.Body)
	return []byte(b.String())
}

func (s *Service) sendSMTP(job Job) error {
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" && s.cfg.SMTPPass != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	return smtp.SendMail(addr, auth, s.cfg.From, []string{headerValue(job.To)}, s.buildMessage(job))
}

// QueueLength reports the pending job count and publishes it as a gauge.
func (s *Service) QueueLength(ctx context.Context) int64 {
	length, err := s.redis.LLen(ctx, queueKey).Result()
	if err != nil {
		logger.Warn("failed to read email queue length", "error", err)
		return 0
	}
	metrics.SetEmailQueueLength(length)
	return length
}

func formatSlot(e *events.Event) string {
	return fmt.Sprintf("%s at %02d:00", e.EventDate.Format("Monday, Jan 2, 2006"), e.Hour)
}

// SendEventRequested notifies a venue manager about a new request.
func (s *Service) SendEventRequested(ctx context.Context, to, venueName string, e *events.Event) error {
	subject := "New event request - " + e.Title
	body := fmt.Sprintf(`Hello,

A new event has been requested at %s:

Title: %s
Category: %s
When: %s

%s

Review it from your venue dashboard.

- %s`, venueName, e.Title, e.Category, formatSlot(e), e.Description, s.cfg.FromName)

	return s.Send(ctx, TypeEventRequested, to, subject, body)
}

// SendEventDecision tells the artist whether the venue approved or rejected.
func (s *Service) SendEventDecision(ctx context.Context, to, venueName string, e *events.Event) error {
	if e.Status == events.StatusApproved {
		subject := "Event approved - " + e.Title
		body := fmt.Sprintf(`Hello,

%s approved your event "%s".

When: %s

See you there!

- %s`, venueName, e.Title, formatSlot(e), s.cfg.FromName)
		return s.Send(ctx, TypeEventApproved, to, subject, body)
	}

	reason := e.RejectionReason
	if reason == "" {
		reason = "No reason given."
	}
	subject := "Event request declined - " + e.Title
	body := fmt.Sprintf(`Hello,

%s could not host your event "%s" on %s.

Reason: %s

- %s`, venueName, e.Title, formatSlot(e), reason, s.cfg.FromName)
	return s.Send(ctx, TypeEventRejected, to, subject, body)
}
