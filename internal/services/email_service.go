package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClient is the subset of the SES API used for notifications
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier sends lockout notices using AWS SES
type SESLockoutNotifier struct {
	client      SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESLockoutNotifier creates a notifier backed by the default AWS credential chain
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESLockoutNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewSESLockoutNotifierWithClient creates a notifier using client
func NewSESLockoutNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NotifyLockout tells the account owner that sign-in is paused
func (n *SESLockoutNotifier) NotifyLockout(ctx context.Context, email string, lockout time.Duration) error {
	minutes := int(lockout.Round(time.Minute) / time.Minute)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h1>Sign-in temporarily locked</h1>
    <p>We noticed several failed attempts to sign in to your account.</p>
    <p>To protect you, sign-in is paused for <strong>%d minutes</strong>.</p>
    <p>If this was you, wait and try again. If it was not, we recommend changing your password once the lock expires.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, minutes)

	textBody := fmt.Sprintf(`Sign-in temporarily locked

We noticed several failed attempts to sign in to your account.
To protect you, sign-in is paused for %d minutes.

If this was you, wait and try again. If it was not, we recommend changing your password once the lock expires.

This is an automated message. Please do not reply to this email.
`, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Failed sign-in attempts on your account"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("lockout notification sent",
		slog.String("email", logger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
