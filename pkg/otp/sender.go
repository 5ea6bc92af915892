package otp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// SendEmailTask is enqueued for every issued code.
const SendEmailTask = "otp:email"

type EmailPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	TTL   string `json:"ttl"`
}

// Sender delivers an issued code to the user.
type Sender interface {
	Send(ctx context.Context, payload EmailPayload) error
}

// QueueSender hands delivery to the worker through asynq.
type QueueSender struct {
	client *asynq.Client
}

func NewQueueSender(client *asynq.Client) *QueueSender {
	return &QueueSender{client: client}
}

func (s *QueueSender) Send(ctx context.Context, payload EmailPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(SendEmailTask, data)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue otp email: %w", err)
	}
	return nil
}

// LogSender writes codes to the log instead of mailing them.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "otp").Logger()}
}

func (s *LogSender) Send(_ context.Context, payload EmailPayload) error {
	s.log.Warn().Str("email", payload.Email).Str("code", payload.Code).Msg("otp delivery disabled, code logged")
	return nil
}
