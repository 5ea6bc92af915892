package otp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreVerifiesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	code, err := store.Issue(ctx, "Engineer@Example.com ")
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)

	ok, err := store.Verify(ctx, "engineer@example.com", "000000x")
	require.NoError(t, err)
	assert.False(t, ok, "wrong code")

	ok, err = store.Verify(ctx, "engineer@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Verify(ctx, "engineer@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok, "code is single use")
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	code, err := store.Issue(ctx, "ops@example.com")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	ok, err := store.Verify(ctx, "ops@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreReissueReplacesCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	first, err := store.Issue(ctx, "a@example.com")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	if first != second {
		ok, err := store.Verify(ctx, "a@example.com", first)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := store.Verify(ctx, "a@example.com", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreConcurrentVerify(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	code, err := store.Issue(ctx, "race@example.com")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := store.Verify(ctx, "race@example.com", code)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

type recordingMailer struct {
	to, subject, body string
	err               error
}

func (m *recordingMailer) Mail(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func TestProcessorHandleEmail(t *testing.T) {
	mailer := &recordingMailer{}
	p := NewProcessor(mailer, zerolog.Nop())

	data, err := json.Marshal(EmailPayload{Email: "de@example.com", Code: "123456", TTL: "5m0s"})
	require.NoError(t, err)
	require.NoError(t, p.HandleEmail(context.Background(), asynq.NewTask(SendEmailTask, data)))

	assert.Equal(t, "de@example.com", mailer.to)
	assert.Equal(t, "Your Login OTP", mailer.subject)
	assert.Contains(t, mailer.body, "123456")
}

func TestProcessorMalformedPayloadSkipsRetry(t *testing.T) {
	p := NewProcessor(&recordingMailer{}, zerolog.Nop())
	err := p.HandleEmail(context.Background(), asynq.NewTask(SendEmailTask, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessorPropagatesMailerError(t *testing.T) {
	boom := errors.New("smtp down")
	p := NewProcessor(&recordingMailer{err: boom}, zerolog.Nop())
	data, _ := json.Marshal(EmailPayload{Email: "x@example.com", Code: "000001"})
	err := p.HandleEmail(context.Background(), asynq.NewTask(SendEmailTask, data))
	assert.ErrorIs(t, err, boom)
}
