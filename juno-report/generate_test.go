package junoreport

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/tj/assert"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2WithContext(_ aws.Context, input *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	var contents []*s3.Object
	for key := range f.objects {
		if strings.HasPrefix(key, aws.StringValue(input.Prefix)) {
			contents = append(contents, &s3.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, input *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[aws.StringValue(input.Key)]))}, nil
}

func TestReportKey(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 5, 6, 0, time.UTC)
	assert.Equal(t, "svc/presence/2024-03-01/14/2024-03-01-14:05:06.json", ReportKey("svc", "presence", ts))
}

func TestGenerate(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}}
	service := junocli.Service{Name: "svc"}

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, hour := range []int{9, 14} {
		count := i + 1
		h := NewHandler(service, api, "presence", func(context.Context) (interface{}, error) {
			return map[string]int{"count": count}, nil
		})
		h.now = func() time.Time { return day.Add(time.Duration(hour) * time.Hour) }
		assert.Nil(t, h.Generate(context.Background(), nil))
	}
	assert.Len(t, api.objects, 2)

	// a report from two days later still finds the latest one
	data, key, err := GetRawAsOf(context.Background(), api, "", "svc", "presence", day.AddDate(0, 0, 2))
	assert.Nil(t, err)
	assert.Equal(t, "svc/presence/2024-03-01/14/2024-03-01-14:00:00.json", key)
	assert.JSONEq(t, `{"count":2}`, string(data))
}
