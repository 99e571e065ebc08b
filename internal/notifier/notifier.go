// Package notifier sends review-outcome notifications over SES email
// and SNS SMS. Notification failures never fail the triggering webhook;
// callers log and move on.
package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"kyc-orchestrator/internal/common/config"
	"kyc-orchestrator/internal/common/logger"
	"kyc-orchestrator/internal/models"
)

type emailSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type smsSender interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Notifier struct {
	cfg    config.NotificationConfig
	email  emailSender
	sms    smsSender
	logger logger.Logger
}

// New builds a notifier from the AWS default credential chain. When
// both channels are disabled no AWS config is loaded and every notify
// call is a no-op.
func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{cfg: cfg, logger: log}
	if !cfg.Email.Enabled && !cfg.SMS.Enabled {
		return n, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Email.Enabled {
		n.email = ses.NewFromConfig(awsCfg)
	}
	if cfg.SMS.Enabled {
		n.sms = sns.NewFromConfig(awsCfg)
	}
	return n, nil
}

// NotifyReviewOutcome tells the applicant their verification result on
// every enabled channel. A channel failure is logged and does not block
// the other channel.
func (n *Notifier) NotifyReviewOutcome(ctx context.Context, applicant *models.Applicant, reviewStatus, reviewResult string) error {
	subject, body := reviewMessage(applicant, reviewStatus, reviewResult)

	var firstErr error
	if n.email != nil && applicant.Email != "" {
		if err := n.sendEmail(ctx, applicant.Email, subject, body); err != nil {
			n.logger.Error("review email failed", map[string]interface{}{
				"applicant_id": applicant.ID,
				"error":        err.Error(),
			})
			firstErr = err
		}
	}
	if n.sms != nil && applicant.Phone != "" {
		if err := n.sendSMS(ctx, applicant.Phone, body); err != nil {
			n.logger.Error("review sms failed", map[string]interface{}{
				"applicant_id": applicant.ID,
				"error":        err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func reviewMessage(applicant *models.Applicant, reviewStatus, reviewResult string) (subject, body string) {
	name := applicant.FirstName
	if name == "" {
		name = "there"
	}

	switch reviewResult {
	case "GREEN":
		subject = "Your identity verification is approved"
		body = fmt.Sprintf("Hi %s, your identity verification has been approved.", name)
	case "RED":
		subject = "Your identity verification needs attention"
		body = fmt.Sprintf("Hi %s, your identity verification was not approved. Please contact support.", name)
	default:
		subject = "Your identity verification update"
		body = fmt.Sprintf("Hi %s, your verification review status is now %q.", name, reviewStatus)
	}
	return subject, body
}
