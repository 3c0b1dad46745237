package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient publishes retrain outcome notifications.
type SNSClient struct {
	svc      *sns.Client
	topicArn string
}

func NewSNSClient(ctx context.Context, region, topicArn string) (*SNSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &SNSClient{svc: sns.NewFromConfig(cfg), topicArn: topicArn}, nil
}

func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) error {
	_, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

// SendPromotionAlert announces a newly promoted model version.
func (c *SNSClient) SendPromotionAlert(ctx context.Context, versionDir string, rmse, r2 float64) error {
	subject := "Monitory: new RUL model promoted"
	message := fmt.Sprintf(
		"A retrained RUL model was promoted to latest.\n\nVersion: %s\nRMSE: %.3f\nR2: %.4f\n",
		versionDir, rmse, r2,
	)
	return c.SendAlert(ctx, subject, message)
}

// SendFailureAlert reports a failed pipeline run.
func (c *SNSClient) SendFailureAlert(ctx context.Context, reason, msg string) error {
	subject := "Monitory: retrain pipeline failed"
	message := fmt.Sprintf("Retrain run failed.\n\nReason: %s\nDetail: %s\n", reason, msg)
	return c.SendAlert(ctx, subject, message)
}
