package sms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	input *sns.PublishInput
	err   error
}

func (p *stubPublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	p.input = params
	if p.err != nil {
		return nil, p.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func newTestSender(pub publisher, senderID string) *SNSSender {
	return &SNSSender{
		client:   pub,
		senderID: senderID,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSNSSender_Send(t *testing.T) {
	pub := &stubPublisher{}
	sender := newTestSender(pub, "Hearth")

	require.NoError(t, sender.Send(context.Background(), "+15035550100", "New lead: 3BR craftsman"))

	require.NotNil(t, pub.input)
	assert.Equal(t, "+15035550100", aws.ToString(pub.input.PhoneNumber))
	assert.Equal(t, "New lead: 3BR craftsman", aws.ToString(pub.input.Message))
	assert.Equal(t, "Transactional", aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "Hearth", aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSNSSender_RejectsMalformedNumbers(t *testing.T) {
	pub := &stubPublisher{}
	sender := newTestSender(pub, "")

	for _, number := range []string{"", "503-555-0100", "15035550100", "+0123456789", "+1"} {
		t.Run(number, func(t *testing.T) {
			err := sender.Send(context.Background(), number, "hi")
			assert.ErrorIs(t, err, ErrInvalidNumber)
			assert.True(t, IsPermanent(err))
		})
	}
	assert.Nil(t, pub.input)
}

func TestSNSSender_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		permanent bool
	}{
		{
			name:      "typed invalid parameter",
			err:       &types.InvalidParameterException{Message: aws.String("Invalid parameter: PhoneNumber")},
			target:    ErrInvalidNumber,
			permanent: true,
		},
		{
			name:      "generic invalid parameter code",
			err:       &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "bad number"},
			target:    ErrInvalidNumber,
			permanent: true,
		},
		{
			name:      "opted out",
			err:       &smithy.GenericAPIError{Code: "OptedOut", Message: "opted out"},
			target:    ErrOptedOut,
			permanent: true,
		},
		{
			name:      "throttled",
			err:       &smithy.GenericAPIError{Code: "Throttling", Message: "rate exceeded"},
			permanent: false,
		},
		{
			name:      "network",
			err:       errors.New("dial tcp: i/o timeout"),
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newTestSender(&stubPublisher{err: tt.err}, "")
			err := sender.Send(context.Background(), "+15035550100", "hi")
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}
