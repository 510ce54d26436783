package junokinesis

import (
	"context"
	"errors"
	"testing"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-lambda-go/events"
	"github.com/tj/assert"
)

func TestHandleKinesisEvent(t *testing.T) {
	var seen []string
	boom := errors.New("boom")
	h := NewHandler(junocli.NewService("test"), "stream", func(_ context.Context, record events.KinesisEventRecord) error {
		seen = append(seen, string(record.Kinesis.Data))
		if string(record.Kinesis.Data) == "bad" {
			return boom
		}
		return nil
	})

	event := events.KinesisEvent{Records: []events.KinesisEventRecord{
		{EventID: "1", Kinesis: events.KinesisRecord{Data: []byte("a")}},
		{EventID: "2", Kinesis: events.KinesisRecord{Data: []byte("bad")}},
		{EventID: "3", Kinesis: events.KinesisRecord{Data: []byte("c")}},
	}}

	err := h.HandleKinesisEvent(context.Background(), event)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, []string{"a", "bad"}, seen)
}
