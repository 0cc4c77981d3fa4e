// Package sms sends text messages to agents through AWS SNS.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

// Sender delivers a single text message.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

var (
	// ErrInvalidNumber is returned for numbers SNS will never deliver to.
	ErrInvalidNumber = errors.New("sms: invalid phone number")

	// ErrOptedOut is returned when the recipient has opted out of SMS.
	ErrOptedOut = errors.New("sms: recipient opted out")
)

// e164 matches numbers like +15035550100.
var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Config holds the SNS connection settings.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SenderID        string // optional alphanumeric sender ID
}

// publisher is the subset of the SNS client used here.
type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender implements Sender with AWS SNS direct-to-phone publishing.
type SNSSender struct {
	client   publisher
	senderID string
	logger   *slog.Logger
}

// NewSNSSender creates an SNS client from static credentials.
func NewSNSSender(cfg Config, logger *slog.Logger) *SNSSender {
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	logger.Info("initialized SNS sms sender", "region", cfg.Region)

	return &SNSSender{
		client:   sns.NewFromConfig(awsCfg),
		senderID: cfg.SenderID,
		logger:   logger,
	}
}

// Send publishes a transactional SMS. The number must be in E.164 format.
func (s *SNSSender) Send(ctx context.Context, phoneNumber, message string) error {
	if !e164.MatchString(phoneNumber) {
		return ErrInvalidNumber
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		Message:           aws.String(message),
		PhoneNumber:       aws.String(phoneNumber),
		MessageAttributes: attrs,
	})
	if err != nil {
		return classify(err)
	}

	s.logger.Info("sms sent", "message_id", aws.ToString(out.MessageId))
	return nil
}

// classify maps SNS API errors onto the package's sentinel errors so callers
// can tell a bad number from a transient outage.
func classify(err error) error {
	var invalidParam *types.InvalidParameterException
	if errors.As(err, &invalidParam) {
		return fmt.Errorf("%w: %s", ErrInvalidNumber, invalidParam.ErrorMessage())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidParameter", "InvalidParameterValue":
			return fmt.Errorf("%w: %s", ErrInvalidNumber, apiErr.ErrorMessage())
		case "OptedOut", "OptedOutException":
			return ErrOptedOut
		}
	}
	return fmt.Errorf("sms: publish: %w", err)
}

// IsPermanent reports whether retrying the send can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidNumber) || errors.Is(err, ErrOptedOut)
}

// LogSender writes messages to the log instead of sending them. It is used
// when SMS delivery is disabled.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(ctx context.Context, phoneNumber, message string) error {
	l.Logger.Debug("sms delivery disabled, message dropped", "length", len(message))
	return nil
}

var (
	_ Sender = (*SNSSender)(nil)
	_ Sender = LogSender{}
)
