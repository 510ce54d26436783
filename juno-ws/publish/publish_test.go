package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/tj/assert"
)

type fakeKinesis struct {
	kinesisiface.KinesisAPI
	inputs []*kinesis.PutRecordInput
}

func (f *fakeKinesis) PutRecordWithContext(_ aws.Context, input *kinesis.PutRecordInput, _ ...request.Option) (*kinesis.PutRecordOutput, error) {
	f.inputs = append(f.inputs, input)
	return &kinesis.PutRecordOutput{}, nil
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("send", func(t *testing.T) {
		api := &fakeKinesis{}
		p := New(api, StreamName("test"))

		err := p.Send(ctx, "deploys", map[string]string{"service": "api"})
		assert.Nil(t, err)
		assert.Len(t, api.inputs, 1)
		assert.Equal(t, "test-junokit-ws-notifications", aws.StringValue(api.inputs[0].StreamName))
		assert.Equal(t, "deploys", aws.StringValue(api.inputs[0].PartitionKey))

		var got Envelope
		assert.Nil(t, json.Unmarshal(api.inputs[0].Data, &got))
		assert.Equal(t, "deploys", got.Topic)
		assert.JSONEq(t, `{"service":"api"}`, string(got.Payload))
	})

	t.Run("missing topic", func(t *testing.T) {
		api := &fakeKinesis{}
		err := New(api, "s").Send(ctx, "", nil)
		assert.True(t, errors.Is(err, ErrMissingTopic))
		assert.Len(t, api.inputs, 0)
	})
}
