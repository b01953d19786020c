package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	gomail "gopkg.in/gomail.v2"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
)

type fakeDialer struct {
	sent    []*gomail.Message
	dialErr error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.dialErr != nil {
		return f.dialErr
	}
	f.sent = append(f.sent, m...)
	return nil
}

func testMailer(t *testing.T, d dialer) *SMTPMailer {
	t.Helper()
	m := New(config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "api",
		Password: "secret",
		Sender:   "noreply@example.com",
	}, zaptest.NewLogger(t))
	m.dialer = d
	return m
}

func TestSendSuccess(t *testing.T) {
	fake := &fakeDialer{}
	m := testMailer(t, fake)

	result, err := m.Send(context.Background(), "ops@example.com", "Failure summary", "3 transactions failed.")
	require.NoError(t, err)
	assert.Equal(t, schemas.DeliverySuccess, result.Status)
	assert.Equal(t, "Email sent successfully", result.Message)

	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, []string{"ops@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Failure summary"}, msg.GetHeader("Subject"))
	assert.Contains(t, msg.GetHeader("From")[0], "noreply@example.com")
}

func TestSendInvalidRecipient(t *testing.T) {
	fake := &fakeDialer{}
	m := testMailer(t, fake)

	result, err := m.Send(context.Background(), "not-an-address", "s", "b")
	require.NoError(t, err, "delivery failures are results, not errors")
	assert.Equal(t, schemas.DeliveryError, result.Status)
	assert.Contains(t, result.Message, "invalid recipient")
	assert.Empty(t, fake.sent)
}

func TestSendTransportFailure(t *testing.T) {
	fake := &fakeDialer{dialErr: errors.New("connection refused")}
	m := testMailer(t, fake)

	result, err := m.Send(context.Background(), "ops@example.com", "s", "b")
	require.NoError(t, err)
	assert.Equal(t, schemas.DeliveryError, result.Status)
	assert.Contains(t, result.Message, "connection refused")
}

func TestSendUnconfigured(t *testing.T) {
	m := New(config.EmailConfig{}, zaptest.NewLogger(t))
	m.dialer = &fakeDialer{}

	result, err := m.Send(context.Background(), "ops@example.com", "s", "b")
	require.NoError(t, err)
	assert.Equal(t, schemas.DeliveryError, result.Status)
	assert.Contains(t, result.Message, "not configured")
}

func TestSendCancelledContext(t *testing.T) {
	fake := &fakeDialer{}
	m := testMailer(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.Send(ctx, "ops@example.com", "s", "b")
	require.NoError(t, err)
	assert.Equal(t, schemas.DeliveryError, result.Status)
	assert.Empty(t, fake.sent)
}
