package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/dmitrijs2005/medkeeper/internal/logging"
)

// SQSConfig names the queue. QueueURL wins over QueueName when both are set.
type SQSConfig struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	QueueName string
	QueueURL  string
}

// loadOptions installs static credentials only when a key is configured;
// otherwise the default chain (environment, shared files, IAM role) applies.
func (c SQSConfig) loadOptions() []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	return opts
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

const (
	sqsMaxMessages = 10
	sqsWaitSeconds = 20
)

// SQSSource long-polls a queue. Messages are deleted once ingested or found
// to be poison; anything else is left for redelivery after the visibility
// timeout.
type SQSSource struct {
	client   sqsAPI
	queueURL string
	coord    *Coordinator
	logger   logging.Logger
}

func NewSQSSource(ctx context.Context, cfg SQSConfig, coord *Coordinator, logger logging.Logger) (*SQSSource, error) {
	if cfg.QueueURL == "" && cfg.QueueName == "" {
		return nil, errors.New("sqs queue url or name is required")
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, cfg.loadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	queueURL := cfg.QueueURL
	if queueURL == "" {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(cfg.QueueName)})
		if err != nil {
			return nil, fmt.Errorf("get queue url %s: %w", cfg.QueueName, err)
		}
		queueURL = aws.ToString(out.QueueUrl)
	}
	return newSQSSource(client, queueURL, coord, logger), nil
}

func newSQSSource(client sqsAPI, queueURL string, coord *Coordinator, logger logging.Logger) *SQSSource {
	return &SQSSource{client: client, queueURL: queueURL, coord: coord, logger: logger.With("module", "ingest", "source", "sqs")}
}

func (s *SQSSource) Run(ctx context.Context) error {
	s.logger.Info(ctx, "sqs source started", "queue", s.queueURL)
	failures := 0
	for ctx.Err() == nil {
		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: sqsMaxMessages,
			WaitTimeSeconds:     sqsWaitSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error(ctx, "sqs receive failed", "error", err)
			if !sleep(ctx, backoff(failures)) {
				break
			}
			failures++
			continue
		}
		failures = 0

		for _, m := range out.Messages {
			s.handle(ctx, aws.ToString(m.MessageId), aws.ToString(m.Body), m.ReceiptHandle)
		}
	}
	return nil
}

func (s *SQSSource) handle(ctx context.Context, id, body string, receipt *string) {
	res, err := s.coord.HandleMessage(ctx, []byte(body))
	switch {
	case err == nil:
		s.logger.Debug(ctx, "sqs message ingested", "message_id", id, "patient_id", res.PatientID)
	case IsPoison(err):
		s.logger.Warn(ctx, "sqs message dropped", "message_id", id, "error", err)
	default:
		s.logger.Error(ctx, "sqs message failed, left for redelivery", "message_id", id, "error", err)
		return
	}

	if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: receipt,
	}); err != nil {
		s.logger.Error(ctx, "sqs delete failed", "message_id", id, "error", err)
	}
}

func (s *SQSSource) Close() error { return nil }
