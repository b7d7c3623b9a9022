package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	mu     sync.Mutex
	inputs []*ses.SendEmailInput
	err    error
	sent   chan struct{}
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.sent != nil {
		f.sent <- struct{}{}
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestAlertService_SendHostBlocked(t *testing.T) {
	client := &fakeSES{}
	s := newAlertService(client, "alertas@dian-gateway.co", "seguridad@empresa.co", quietLogger())

	until := time.Date(2025, 6, 2, 9, 35, 0, 0, time.UTC)
	require.NoError(t, s.sendHostBlocked(context.Background(), "192.168.1.1", until))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "alertas@dian-gateway.co", aws.ToString(in.Source))
	assert.Equal(t, []string{"seguridad@empresa.co"}, in.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(in.Message.Subject.Data), "192.168.1.1")
	assert.Contains(t, aws.ToString(in.Message.Body.Text.Data), "2025-06-02T09:35:00Z")
}

func TestAlertService_SendError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	s := newAlertService(client, "a@b.co", "c@d.co", quietLogger())

	err := s.sendHostBlocked(context.Background(), "10.0.0.5", time.Now())
	assert.ErrorContains(t, err, "throttled")
}

func TestAlertService_HostBlockedIsThrottled(t *testing.T) {
	client := &fakeSES{sent: make(chan struct{}, 20)}
	s := newAlertService(client, "a@b.co", "c@d.co", quietLogger())

	for i := 0; i < alertBurst+3; i++ {
		s.HostBlocked("10.0.0.5", time.Now())
	}

	for i := 0; i < alertBurst; i++ {
		select {
		case <-client.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("alert %d was not sent", i+1)
		}
	}

	select {
	case <-client.sent:
		t.Fatal("alert beyond the burst should have been dropped")
	case <-time.After(100 * time.Millisecond):
	}
}
