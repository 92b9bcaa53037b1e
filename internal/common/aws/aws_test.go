package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSES struct{ mock.Mock }

func (m *mockSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*ses.SendEmailOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestMailerSend(t *testing.T) {
	api := &mockSES{}
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "leads@example.com" &&
			in.Destination.ToAddresses[0] == "owner@joes.com" &&
			aws.ToString(in.Message.Subject.Data) == "New lead" &&
			in.Message.Body.Html == nil
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil)

	id, err := NewMailerWithAPI(api, "leads@example.com").Send(context.Background(), Email{
		To: "owner@joes.com", Subject: "New lead", TextBody: "Ann wants a table",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	api.AssertExpectations(t)
}

func TestTexterSend(t *testing.T) {
	api := &mockSNS{}
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_, hasSender := in.MessageAttributes["AWS.SNS.SMS.SenderID"]
		return aws.ToString(in.PhoneNumber) == "+15550100" && hasSender
	})).Return(&sns.PublishOutput{MessageId: aws.String("s-1")}, nil).Once()
	api.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

	texter := NewTexterWithAPI(api, "DIRECTORY")
	id, err := texter.Send(context.Background(), "+15550100", "hi")
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	_, err = texter.Send(context.Background(), "+15550100", "hi")
	assert.EqualError(t, err, "throttled")
}
