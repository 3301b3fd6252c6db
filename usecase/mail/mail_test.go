package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/ocxers/domain"
)

type captureSender struct {
	sent []Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func newService(t *testing.T) (*Service, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	svc, err := NewService(sender, Config{NoReply: "noreply@ocxers.test", FromTitle: "__ocxers__", AppHost: "https://app.test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc, sender
}

func TestService_Dispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		req         Request
		wantSubject string
		wantHTML    []string
	}{
		{
			name:        "thank",
			req:         Request{Type: KindThank, Message: "Thanks for visiting", URL: "https://app.test/x", To: Recipient{Email: "ana@example.com"}},
			wantSubject: "Thanks for visiting",
			wantHTML:    []string{"Thank you __ocxers__.", "Thanks for visiting", "https://app.test/x"},
		},
		{
			name:        "invitation",
			req:         Request{Type: KindInvitation, Message: "Join us", InviteLink: "https://app.test/activate-account?code=abc", To: Recipient{Email: "ana@example.com"}},
			wantSubject: "Activate Your Account",
			wantHTML:    []string{"ACTIVATE ACCOUNT", "After 14 days, this link will expire.", "https://app.test/activate-account?code=abc"},
		},
		{
			name:        "reset password",
			req:         Request{Type: KindResetPassword, ResetPasswordLink: "https://app.test/reset-password?code=abc", To: Recipient{Email: "ana@example.com"}},
			wantSubject: "Password Reset",
			wantHTML:    []string{"RESET PASSWORD", "After two hours, this link will expire."},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, sender := newService(t)
			require.NoError(t, svc.Dispatch(context.Background(), tt.req))
			require.Len(t, sender.sent, 1)
			msg := sender.sent[0]
			assert.Equal(t, "__ocxers__ <noreply@ocxers.test>", msg.From)
			assert.Equal(t, []string{"ana@example.com"}, msg.To)
			assert.Equal(t, tt.wantSubject, msg.Subject)
			for _, fragment := range tt.wantHTML {
				assert.Contains(t, msg.HTML, fragment)
			}
			assert.Contains(t, msg.HTML, "https://app.test/staticImgs/logo.png")
		})
	}
}

func TestService_DispatchRejects(t *testing.T) {
	t.Parallel()
	svc, sender := newService(t)

	err := svc.Dispatch(context.Background(), Request{Type: "fax", To: Recipient{Email: "ana@example.com"}})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	err = svc.Dispatch(context.Background(), Request{Type: KindThank})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Empty(t, sender.sent)
}

func TestService_Helpers(t *testing.T) {
	t.Parallel()
	svc, sender := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SendInvitation(ctx, "ana@example.com", "https://app.test/activate-account?code=1"))
	require.NoError(t, svc.SendResetPassword(ctx, "ana@example.com", "https://app.test/reset-password?code=2"))
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].HTML, "You have been invited to join __ocxers__.")
	assert.Contains(t, sender.sent[1].HTML, "reset your __ocxers__ account password")
}

func TestService_OverridesAndFailures(t *testing.T) {
	t.Parallel()
	svc, sender := newService(t)

	require.NoError(t, svc.Dispatch(context.Background(), Request{
		Type:      KindThank,
		Message:   "Hello",
		FromTitle: "Showroom",
		SendTo:    "boss@example.com",
		Logo:      "https://cdn.test/logo.png",
		To:        Recipient{Email: "ana@example.com"},
	}))
	msg := sender.sent[0]
	assert.Equal(t, "Showroom <noreply@ocxers.test>", msg.From)
	assert.Equal(t, []string{"boss@example.com"}, msg.Cc)
	assert.Contains(t, msg.HTML, "https://cdn.test/logo.png")

	sender.err = errors.New("smtp down")
	assert.Error(t, svc.Dispatch(context.Background(), Request{Type: KindThank, To: Recipient{Email: "ana@example.com"}}))
}
