// Package mail delivers rendered messages through Amazon SES or the log.
package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/config"
	usecasemail "github.com/fastygo/ocxers/usecase/mail"
)

const charset = "UTF-8"

// sesAPI is the part of *sesv2.Client the sender calls.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var _ usecasemail.Sender = (*SES)(nil)

// SES sends mail through the SES v2 API.
type SES struct {
	api    sesAPI
	logger *zap.Logger
}

// NewSES builds a sender from the mail settings.
func NewSES(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESWithAPI(sesv2.NewFromConfig(awsCfg), logger), nil
}

// NewSESWithAPI allows injecting a fake API.
func NewSESWithAPI(api sesAPI, logger *zap.Logger) *SES {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SES{api: api, logger: logger}
}

func (s *SES) Send(ctx context.Context, msg usecasemail.Message) error {
	dest := &types.Destination{ToAddresses: msg.To}
	if len(msg.Cc) > 0 {
		dest.CcAddresses = msg.Cc
	}
	out, err := s.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      dest,
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	s.logger.Debug("mail sent", zap.Strings("to", msg.To), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
