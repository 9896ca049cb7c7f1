package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

type stubSQS struct {
	lastInput *sqs.SendMessageInput
	err       error
}

func (s *stubSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.lastInput = params
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func sampleEvent() Event {
	return New(KindProposalSent, ProposalPayload{
		ProposalID:     "p-1",
		LeadID:         "l-1",
		SalesUserID:    "u-1",
		PreviousStatus: "draft",
		NewStatus:      "sent",
		TotalValue:     1200,
		WinProbability: 40,
	}, Context{UserID: "u-1", ClinicID: "c-1", Source: "proposals-service"})
}

func TestNewEnvelope(t *testing.T) {
	ev := sampleEvent()
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.OccurredAt.IsZero())
	require.Equal(t, KindProposalSent, ev.Kind)
}

func TestSQSPublisherSendsEnvelope(t *testing.T) {
	stub := &stubSQS{}
	pub := NewSQSPublisherWithAPI(stub, "https://sqs.local/sales-events")

	ev := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), ev))
	require.NotNil(t, stub.lastInput)
	require.Equal(t, "https://sqs.local/sales-events", aws.ToString(stub.lastInput.QueueUrl))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(stub.lastInput.MessageBody)), &decoded))
	require.Equal(t, ev.ID, decoded.ID)
	require.Equal(t, "sent", decoded.Payload.NewStatus)
	require.Equal(t, "proposals-service", decoded.Context.Source)
}

func TestSQSPublisherPropagatesSendError(t *testing.T) {
	stub := &stubSQS{err: errors.New("queue unavailable")}
	pub := NewSQSPublisherWithAPI(stub, "https://sqs.local/sales-events")

	err := pub.Publish(context.Background(), sampleEvent())
	require.ErrorContains(t, err, "queue unavailable")
}

func TestRedisPublisherAppendsToStream(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewRedisPublisher(client, "sales.events")
	ev := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), ev))

	entries, err := client.XRange(context.Background(), "sales.events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, KindProposalSent, entries[0].Values["kind"])

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &decoded))
	require.Equal(t, ev.Payload.ProposalID, decoded.Payload.ProposalID)
}

func TestLogPublisherNeverFails(t *testing.T) {
	pub := NewLogPublisher(logging.Default())
	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
}
