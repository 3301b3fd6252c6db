package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	usecasemail "github.com/fastygo/ocxers/usecase/mail"
)

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSES_Send(t *testing.T) {
	t.Parallel()
	api := &fakeSES{}
	sender := NewSESWithAPI(api, nil)

	err := sender.Send(context.Background(), usecasemail.Message{
		From:    "__ocxers__ <noreply@example.com>",
		To:      []string{"ana@example.com"},
		Cc:      []string{"boss@example.com"},
		Subject: "Password Reset",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, api.in)
	assert.Equal(t, "__ocxers__ <noreply@example.com>", aws.ToString(api.in.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, api.in.Destination.ToAddresses)
	assert.Equal(t, []string{"boss@example.com"}, api.in.Destination.CcAddresses)
	assert.Equal(t, "Password Reset", aws.ToString(api.in.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>hi</p>", aws.ToString(api.in.Content.Simple.Body.Html.Data))

	api.err = errors.New("throttled")
	assert.ErrorContains(t, sender.Send(context.Background(), usecasemail.Message{To: []string{"a@example.com"}}), "throttled")
}

func TestLog_Send(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	sender := NewLog(zap.New(core))

	require.NoError(t, sender.Send(context.Background(), usecasemail.Message{To: []string{"ana@example.com"}, Subject: "Hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Hi", logs.All()[0].ContextMap()["subject"])
}
