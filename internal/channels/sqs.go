package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// maxQueueName is the SQS limit on queue name length.
const maxQueueName = 80

type sqsAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSOptions locate the queues. Endpoint is for LocalStack and similar.
type SQSOptions struct {
	Region      string
	Endpoint    string
	QueuePrefix string
}

// SQS sends each event to a queue named after the instance and event. The
// queues are provisioned outside this service.
type SQS struct {
	base
	cfg SQSOptions

	// load builds the SQS client; replaced in tests.
	load func(ctx context.Context) (sqsAPI, error)

	mu     sync.Mutex
	api    sqsAPI
	queues map[string]map[string]string // instance -> queue name -> URL
}

var _ Channel = (*SQS)(nil)

func NewSQS(s store.ConfigStore, cfg SQSOptions, opts Options) *SQS {
	q := &SQS{
		base:   newBase(model.ChannelSQS, s, opts, true),
		cfg:    cfg,
		queues: make(map[string]map[string]string),
	}
	q.load = q.loadClient
	return q
}

// Init loads AWS credentials. Failure is logged and retried on first send.
func (q *SQS) Init(ctx context.Context) error {
	if _, err := q.client(ctx); err != nil {
		q.logger.Warn("channels: sqs client unavailable at init, deferring", "region", q.cfg.Region, "err", err)
	}
	return nil
}

func (q *SQS) Deliver(ctx context.Context, env model.Envelope) {
	q.deliver(ctx, env, q.send)
}

func (q *SQS) Set(ctx context.Context, instanceName string, cfg model.ChannelConfig) (*model.ChannelRecord, error) {
	return q.set(ctx, instanceName, cfg)
}

func (q *SQS) Get(ctx context.Context, instanceName string) (*model.ChannelRecord, error) {
	return q.get(ctx, instanceName)
}

// Release forgets the queue URLs resolved for instanceName.
func (q *SQS) Release(instanceName string) {
	q.mu.Lock()
	delete(q.queues, instanceName)
	q.mu.Unlock()
}

func (q *SQS) Close() error {
	q.mu.Lock()
	q.queues = make(map[string]map[string]string)
	q.mu.Unlock()
	return nil
}

// client returns the shared SQS client, building it on first use. The
// mutex is not held while the AWS config loads; concurrent first callers
// each load and the first stored client wins.
func (q *SQS) client(ctx context.Context) (sqsAPI, error) {
	q.mu.Lock()
	api := q.api
	q.mu.Unlock()
	if api != nil {
		return api, nil
	}

	api, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.api == nil {
		q.api = api
	}
	return q.api, nil
}

func (q *SQS) loadClient(ctx context.Context) (sqsAPI, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if q.cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(q.cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var sqsOpts []func(*sqs.Options)
	if q.cfg.Endpoint != "" {
		sqsOpts = append(sqsOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(q.cfg.Endpoint)
		})
	}
	return sqs.NewFromConfig(awsCfg, sqsOpts...), nil
}

// QueueName returns the queue an event for instanceName is sent to. Names
// over the SQS length limit keep their head and end in a hash of the full
// name, so distinct pairs stay distinct.
func (q *SQS) QueueName(instanceName, event string) string {
	name := q.cfg.QueuePrefix + queueToken(instanceName) + "_" + queueToken(model.NormalizeEvent(event))
	if len(name) <= maxQueueName {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(name)) //nolint:errcheck
	sum := fmt.Sprintf("%08x", h.Sum32())
	return name[:maxQueueName-len(sum)-1] + "_" + sum
}

func (q *SQS) queueURL(ctx context.Context, api sqsAPI, instanceName, name string) (string, error) {
	q.mu.Lock()
	url, ok := q.queues[instanceName][name]
	q.mu.Unlock()
	if ok {
		return url, nil
	}

	out, err := api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("resolving queue %s: %w", name, err)
	}
	url = aws.ToString(out.QueueUrl)

	q.mu.Lock()
	if q.queues[instanceName] == nil {
		q.queues[instanceName] = make(map[string]string)
	}
	q.queues[instanceName][name] = url
	q.mu.Unlock()
	return url, nil
}

func (q *SQS) send(ctx context.Context, _ *model.ChannelRecord, env model.Envelope) error {
	api, err := q.client(ctx)
	if err != nil {
		return err
	}
	url, err := q.queueURL(ctx, api, env.InstanceName, q.QueueName(env.InstanceName, env.Event))
	if err != nil {
		return err
	}

	body, err := json.Marshal(newMessage(env))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	event := model.NormalizeEvent(env.Event)
	_, err = api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event":    {DataType: aws.String("String"), StringValue: aws.String(event)},
			"instance": {DataType: aws.String("String"), StringValue: aws.String(env.InstanceName)},
		},
	})
	if err != nil {
		return fmt.Errorf("sending to %s: %w", url, err)
	}
	return nil
}

// queueToken maps every character SQS rejects in standard queue names,
// dots included, to an underscore.
func queueToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
