package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
)

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures NewSES. An empty key pair uses the default AWS
// credential chain.
type SESConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	From      string
}

// SESNotifier sends alerts through Amazon SES v2.
type SESNotifier struct {
	api    sesAPI
	from   string
	logger logpkg.Logger
}

// loadAWSConfig can be replaced in tests.
var loadAWSConfig = awsconfig.LoadDefaultConfig

// NewSES builds an SES client from cfg.
func NewSES(ctx context.Context, cfg SESConfig, logger logpkg.Logger) (*SESNotifier, error) {
	if cfg.From == "" {
		return nil, errors.New("ses notifier: sender address is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newSESNotifier(sesv2.NewFromConfig(awsCfg), cfg.From, logger), nil
}

func newSESNotifier(api sesAPI, from string, logger logpkg.Logger) *SESNotifier {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	return &SESNotifier{api: api, from: from, logger: logger}
}

// Notify emails the site's admin address. Sites without one are skipped.
func (n *SESNotifier) Notify(ctx context.Context, ev domain.BlockedEvent) error {
	if ev.Site.AdminEmail == "" {
		n.logger.Warn(map[string]any{"site": ev.Site.ID}, "no admin email configured, notification skipped")
		return nil
	}
	subject, body := Compose(ev)
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{ev.Site.AdminEmail}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("site"), Value: aws.String(ev.Site.ID)},
		},
	}
	out, err := n.api.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", ev.Site.AdminEmail, err)
	}
	n.logger.Debug(map[string]any{"site": ev.Site.ID, "message_id": aws.ToString(out.MessageId)}, "admin notification sent")
	return nil
}

var _ Notifier = (*SESNotifier)(nil)
