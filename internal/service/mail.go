package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bitwise74/smart-librarian/config"
	"bitwise74/smart-librarian/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var (
	ErrMailQueueFull   = errors.New("mail queue full")
	ErrMailQueueClosed = errors.New("mail queue closed")
)

// Mailer delivers a single HTML message
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPMailer sends mail through a relay using gomail
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	switch cfg.Security {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	case "none":
		// gomail still upgrades when the server offers STARTTLS
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &SMTPMailer{from: from, dialer: d}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", "This message requires an HTML capable mail client.")
	msg.AddAlternative("text/html", html)

	return m.dialer.DialAndSend(msg)
}

// LogMailer writes messages to the log. Used when no relay is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, html string) error {
	zap.L().Info("Mail delivery disabled, logging message instead",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", html))

	return nil
}

type MailJob struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

// MailQueue sends mail in the background so request handlers never wait
// on an SMTP server
type MailQueue struct {
	mailer     Mailer
	jobs       chan *MailJob
	pending    atomic.Int32
	workers    int
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewMailQueue creates a queue holding at most size undelivered messages
func NewMailQueue(m Mailer, size, workers, maxRetries int) *MailQueue {
	zap.L().Debug("Initializing mail queue", zap.Int("max_jobs", size), zap.Int("workers", workers))

	return &MailQueue{
		mailer:     m,
		jobs:       make(chan *MailJob, size),
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    2 * time.Second,
		timeout:    30 * time.Second,
	}
}

func (q *MailQueue) StartWorkerPool() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *MailQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		err := q.deliver(job)

		q.pending.Add(-1)

		if err != nil {
			zap.L().Error("Mail job failed",
				zap.String("job_id", job.ID),
				zap.String("to", job.To),
				zap.Error(err))
		} else {
			zap.L().Debug("Mail job finished successfully", zap.String("job_id", job.ID))
		}
	}
}

func (q *MailQueue) deliver(job *MailJob) error {
	var err error

	for attempt := 0; attempt <= q.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(q.backoff * time.Duration(attempt))
		}

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err = q.mailer.Send(ctx, job.To, job.Subject, job.HTML)
		cancel()

		if err == nil {
			return nil
		}

		zap.L().Warn("Mail delivery attempt failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return fmt.Errorf("gave up after %d attempts, %w", q.maxRetries+1, err)
}

// Enqueue schedules a message without blocking. It fails when the queue is
// full or stopped.
func (q *MailQueue) Enqueue(to, subject, html string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrMailQueueClosed
	}

	job := &MailJob{
		ID:      uuid.NewString(),
		To:      to,
		Subject: subject,
		HTML:    html,
	}

	// Counted before the send so a fast worker can't take it below zero
	n := q.pending.Add(1)

	select {
	case q.jobs <- job:
		zap.L().Debug("New mail job enqueued", zap.Int32("enqueued", n), zap.String("job_id", job.ID))
		return nil
	default:
		q.pending.Add(-1)
		return ErrMailQueueFull
	}
}

// Pending returns the number of messages not yet handled by a worker
func (q *MailQueue) Pending() int {
	return int(q.pending.Load())
}

// Stop refuses new jobs and waits for queued ones to drain or ctx to end
func (q *MailQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const codeMailTemplate = `<div style="font-family:sans-serif;max-width:480px;margin:auto">
<h2>Smart Librarian</h2>
<p>Use the code below to %s.</p>
<p style="font-size:28px;font-weight:bold;letter-spacing:6px">%s</p>
<p>The code expires in %d minutes. If you did not request it you can ignore this message.</p>
</div>`

// CodeMail renders the subject and body of a verification code message
func CodeMail(p model.CodePurpose, code string, ttl time.Duration) (string, string, error) {
	var subject, action string

	switch p {
	case model.PurposeVerifyEmail:
		subject, action = "Verify your email", "verify your email address"
	case model.PurposeResetPassword:
		subject, action = "Reset your password", "reset your password"
	case model.PurposeChangePassword:
		subject, action = "Confirm your password change", "confirm your password change"
	default:
		return "", "", fmt.Errorf("no mail template for purpose %q", p)
	}

	return subject, fmt.Sprintf(codeMailTemplate, action, code, int(ttl.Minutes())), nil
}
