package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fightgen/pkg/config"
	errs "fightgen/pkg/errors"
	"fightgen/pkg/logger"
	"fightgen/pkg/retry"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates batches through an OpenAI-compatible chat completions API
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	retry       *retry.Config
	logger      logger.Logger
}

// Option customises the OpenAI client
type Option func(*openAIOptions)

type openAIOptions struct {
	httpClient *http.Client
	sleep      retry.SleepFunc
}

// WithHTTPClient overrides the HTTP client used by the SDK
func WithHTTPClient(hc *http.Client) Option {
	return func(o *openAIOptions) { o.httpClient = hc }
}

// WithSleep overrides how the client waits between transport retries
func WithSleep(sleep retry.SleepFunc) Option {
	return func(o *openAIOptions) { o.sleep = sleep }
}

// NewOpenAI creates a generation client from configuration
func NewOpenAI(cfg config.GeneratorConfig, log logger.Logger, opts ...Option) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "cannot create generation client", config.ErrMissingAPIKey)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	o := openAIOptions{sleep: retry.Wait}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	log = log.WithField("component", "generator")
	return &OpenAI{
		client:      openai.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry: &retry.Config{
			MaxAttempts: maxAttempts,
			Backoff:     retry.NewErrorTypeBackoff(),
			Sleep:       o.sleep,
			Logger:      log,
		},
		logger: log,
	}, nil
}

// Model returns the configured model name
func (c *OpenAI) Model() string {
	return c.model
}

// Generate requests one batch and returns the raw message content
func (c *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(BuildPrompt(req)),
		},
		Model:       c.model,
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	}

	return retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
		start := time.Now()
		content, err := c.complete(ctx, params)
		logger.LogGenerationRequest(c.logger, c.model, req.Count, time.Since(start), err)
		return content, err
	}, c.retry)
}

func (c *OpenAI) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.New(errs.ErrorTypeParsing, "empty response from API: no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errs.New(errs.ErrorTypeParsing, "empty response from API: no content")
	}
	return content, nil
}

// classify maps SDK and transport errors onto typed errors
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		typed := errs.Wrap(errs.FromStatusCode(apiErr.StatusCode), fmt.Sprintf("generation API returned %d", apiErr.StatusCode), err)
		typed.Code = apiErr.StatusCode
		return typed
	}

	return errs.Wrap(errs.ErrorTypeNetwork, "generation request failed", err)
}
