package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher sends events to the messages topic the websocket API listens on.
type SNSPublisher struct {
	client   SNSAPI
	topicArn string
}

func NewSNSPublisher(client SNSAPI, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event message.OutboundEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return &PublishError{ConnectionID: event.ConnectionID, Action: event.Action, Err: err}
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicArn),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return &PublishError{ConnectionID: event.ConnectionID, Action: event.Action, Err: err}
	}
	return nil
}
