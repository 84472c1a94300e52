package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/llm"
	"github.com/hackgods/clinic-chat-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-chat-scheduling/internal/upload"
)

// Providers holds the external clients built from config. Closers are run
// on shutdown.
type Providers struct {
	Intents *intent.Composite
	Uploads upload.Linker

	closers []io.Closer
}

func (p *Providers) Close(logger *slog.Logger) {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			logger.Warn("error closing provider", "error", err)
		}
	}
}

// BuildProviders wires the intent classifier and the upload linker. Gemini
// is primary when both model providers are configured; with neither the
// classifier runs on keyword rules alone.
func BuildProviders(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.SchedulingMetrics) (*Providers, error) {
	p := &Providers{}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	fallback := &llm.FallbackClient{Logger: logger}

	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		p.closers = append(p.closers, gemini)
		fallback.Primary = gemini
		logger.Info("gemini classifier enabled", "model", cfg.GeminiModel)
	}

	if cfg.BedrockModelID != "" {
		c, err := loadAWS()
		if err != nil {
			p.Close(logger)
			return nil, err
		}
		fallback.Secondary = llm.NewBedrockClient(bedrockruntime.NewFromConfig(c), cfg.BedrockModelID)
		logger.Info("bedrock classifier enabled", "model", cfg.BedrockModelID, "region", cfg.AWSRegion)
	}

	var remote intent.Classifier
	if fallback.Primary != nil || fallback.Secondary != nil {
		remote = intent.NewLLMClassifier(fallback, cfg.ClassifierTimeout)
	} else {
		logger.Warn("no model provider configured; intent detection uses keyword rules only")
	}
	p.Intents = intent.NewComposite(remote, logger, m)

	if cfg.UploadBucket != "" {
		c, err := loadAWS()
		if err != nil {
			p.Close(logger)
			return nil, err
		}
		p.Uploads = upload.NewS3Linker(s3.NewPresignClient(s3.NewFromConfig(c)), cfg.UploadBucket, cfg.UploadURLTTL)
		logger.Info("attachment uploads go to s3", "bucket", cfg.UploadBucket)
	} else {
		p.Uploads = upload.PathLinker{BaseURL: cfg.UploadBaseURL}
	}

	return p, nil
}
