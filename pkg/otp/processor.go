package otp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Mailer sends a plain-text message.
type Mailer interface {
	Mail(ctx context.Context, to, subject, body string) error
}

// Processor runs in the worker and delivers queued codes.
type Processor struct {
	mailer Mailer
	log    zerolog.Logger
}

func NewProcessor(mailer Mailer, log zerolog.Logger) *Processor {
	return &Processor{mailer: mailer, log: log.With().Str("component", "otp_worker").Logger()}
}

// Handler registers the email task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(SendEmailTask, p.HandleEmail)
	return mux
}

func (p *Processor) HandleEmail(ctx context.Context, task *asynq.Task) error {
	var payload EmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	body := fmt.Sprintf("Your OTP is %s. It will expire in %s.", payload.Code, payload.TTL)
	if err := p.mailer.Mail(ctx, payload.Email, "Your Login OTP", body); err != nil {
		p.log.Error().Err(err).Str("email", payload.Email).Msg("otp email failed")
		return err
	}
	p.log.Info().Str("email", payload.Email).Msg("otp email sent")
	return nil
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) Mail(_ context.Context, to, subject, body string) error {
	m.Log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail")
	return nil
}
