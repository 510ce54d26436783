// Package junoreport generates JSON reports on a schedule and stores them in
// S3 under a date-partitioned key.
package junoreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

type GenerateCallback func(ctx context.Context) (interface{}, error)

type Handler struct {
	service junocli.Service
	logger  zerolog.Logger
	s3      s3iface.S3API

	reportName string
	now        func() time.Time

	generate GenerateCallback
}

func ReportKey(serviceName, reportName string, timestamp time.Time) string {
	return fmt.Sprintf("%v/%v/%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"), timestamp.Format("15"), timestamp.Format("2006-01-02-15:04:05.json"))
}

func NewHandler(
	service junocli.Service,
	s3api s3iface.S3API,
	reportName string,
	generate GenerateCallback,
) *Handler {
	return &Handler{
		service:    service,
		logger:     junocli.Logger(service),
		s3:         s3api,
		reportName: reportName,
		now:        func() time.Time { return time.Now().UTC() },
		generate:   generate,
	}
}

// Generate builds the report and stores it: in S3 normally, on stdout or in
// --out-file when running dry.
func (h *Handler) Generate(ctx context.Context, _ json.RawMessage) error {
	ctx = h.logger.WithContext(ctx)
	h.logger.Info().Msg("generating report")
	report, err := h.generate(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to generate report")
		return err
	}
	reportBytes, err := json.Marshal(report)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal report")
		return err
	}

	now := h.now()
	if junocli.CommonOpts.Dry {
		if ReportOpts.OutFile == "" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		if err := os.MkdirAll(path.Dir(ReportOpts.OutFile), 0755); err != nil {
			return err
		}
		h.logger.Info().Str("filename", ReportOpts.OutFile).Int("size", len(reportBytes)).Msg("dry run, saving report locally")
		return os.WriteFile(ReportOpts.OutFile, reportBytes, 0644)
	}

	key := ReportKey(h.service.Name, h.reportName, now)
	h.logger.Info().Str("bucket", ReportOpts.Bucket).Str("key", key).Int("size", len(reportBytes)).Msg("saving report to s3")
	_, err = h.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ReportOpts.Bucket),
		Body:        bytes.NewReader(reportBytes),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("writing report to s3://%v/%v: %w", ReportOpts.Bucket, key, err)
	}
	return nil
}

// GetRawAsOf returns the most recent report written on the day of timestamp,
// looking back up to five days.
func GetRawAsOf(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, timestamp time.Time) ([]byte, string, error) {
	for count := 0; ; count++ {
		prefix := fmt.Sprintf("%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"))
		listOutput, err := s3Api.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int64(1000),
			Prefix:  aws.String(prefix),
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to list reports in %v: %w", prefix, err)
		}

		if len(listOutput.Contents) == 0 {
			if count >= 5 {
				return nil, "", fmt.Errorf("failed to find latest report after 5 days: %v", timestamp)
			}
			yesterday := timestamp.AddDate(0, 0, -1)
			timestamp = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 23, 59, 59, 0, time.UTC)
			continue
		}

		sort.Slice(listOutput.Contents, func(i, j int) bool {
			return aws.StringValue(listOutput.Contents[i].Key) > aws.StringValue(listOutput.Contents[j].Key)
		})
		latestKey := listOutput.Contents[0].Key

		output, err := s3Api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    latestKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to get report %v: %w", aws.StringValue(latestKey), err)
		}
		defer output.Body.Close()

		data, err := io.ReadAll(output.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read report %v: %w", aws.StringValue(latestKey), err)
		}
		return data, aws.StringValue(latestKey), nil
	}
}

func (h *Handler) Start() error {
	if ReportOpts.GetLatest {
		data, _, err := GetRawAsOf(context.Background(), h.s3, ReportOpts.Bucket, h.service.Name, h.reportName, h.now())
		if err != nil {
			return err
		}
		if ReportOpts.OutFile != "" {
			return os.WriteFile(ReportOpts.OutFile, data, 0644)
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err != nil {
			return err
		}
		_, err = os.Stdout.Write(pretty.Bytes())
		return err
	}

	switch {
	case junocli.CommonOpts.Console:
		return h.Generate(context.Background(), nil)

	default:
		lambda.Start(h.Generate)
	}
	return nil
}
