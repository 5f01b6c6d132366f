// Package gemini implements the model invocation capability on the Google
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/pkg/safehttp"
	"github.com/tjfontaine/audiencesim/internal/provider/registry"
)

// ProviderType is the model.provider value selecting this package.
const ProviderType = "gemini"

// Media defaults, matching the server's upload settings.
const (
	DefaultMediaDir      = "videos"
	DefaultMaxMediaBytes = 512 << 20
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty model response")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type fileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

// Provider is a ports.ModelInvoker backed by genai.
type Provider struct {
	models       contentGenerator
	files        fileService
	media        *http.Client
	names        map[ports.ModelTier]string
	pollInterval time.Duration
	logger       *slog.Logger

	// mediaDir confines local media references; maxMediaBytes bounds
	// remote downloads.
	mediaDir      string
	maxMediaBytes int64
}

// Option configures a Provider.
type Option func(*Provider)

// WithMediaClient overrides the client used to download remote media.
func WithMediaClient(c *http.Client) Option {
	return func(p *Provider) { p.media = c }
}

// WithPollInterval sets the media processing poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithMediaDir sets the directory local media references must resolve
// into.
func WithMediaDir(dir string) Option {
	return func(p *Provider) {
		if dir != "" {
			p.mediaDir = dir
		}
	}
}

// WithMaxMediaBytes bounds the size of downloaded remote media.
func WithMaxMediaBytes(n int64) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxMediaBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a provider over an existing client.
func New(client *genai.Client, cfg config.ModelConfig, opts ...Option) *Provider {
	p := newProvider(client.Models, client.Files, cfg)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newProvider(models contentGenerator, files fileService, cfg config.ModelConfig) *Provider {
	mediaTimeout := cfg.MediaTimeout
	if mediaTimeout <= 0 {
		mediaTimeout = 60 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Provider{
		models: models,
		files:  files,
		media:  safehttp.NewClient(mediaTimeout, false),
		names: map[ports.ModelTier]string{
			ports.TierDefault: cfg.Model,
			ports.TierFast:    firstNonEmpty(cfg.FastModel, cfg.Model),
			ports.TierLite:    firstNonEmpty(cfg.LiteModel, cfg.FastModel, cfg.Model),
		},
		pollInterval:  poll,
		logger:        slog.Default(),
		mediaDir:      DefaultMediaDir,
		maxMediaBytes: DefaultMaxMediaBytes,
	}
}

// ModelFor resolves the model name serving req.
func (p *Provider) ModelFor(req ports.GenerateRequest) string {
	if req.Model != "" {
		return req.Model
	}
	tier := req.Tier
	if tier == "" {
		tier = ports.TierDefault
	}
	return p.names[tier]
}

func (p *Provider) generateConfig(req ports.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "text/plain",
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.MaxOutputTokens
	}
	return cfg
}

// Generate implements ports.ModelInvoker.
func (p *Provider) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	model := p.ModelFor(req)
	resp, err := p.models.GenerateContent(ctx, model, genai.Text(req.Prompt), p.generateConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}
	return responseText(resp)
}

// GenerateWithMedia implements ports.ModelInvoker.
func (p *Provider) GenerateWithMedia(ctx context.Context, req ports.MediaRequest) (string, error) {
	file, err := p.upload(ctx, req.MediaRef, req.MIMEType)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromURI(file.URI, file.MIMEType),
		genai.NewPartFromText(req.Prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	model := p.ModelFor(req.GenerateRequest)
	resp, err := p.models.GenerateContent(ctx, model, contents, p.generateConfig(req.GenerateRequest))
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ValidateConfig checks the settings this provider requires.
func ValidateConfig(cfg config.ModelConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("model.api_key (or GEMINI_API_KEY) is required")
	}
	if cfg.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	return nil
}

// CreateFromConfig builds a client and provider from configuration.
func CreateFromConfig(cfg config.ModelConfig, opts registry.Options) (ports.ModelInvoker, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.HTTPClient != nil {
		clientCfg.HTTPClient = opts.HTTPClient
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return New(client, cfg,
		WithLogger(opts.Logger),
		WithMediaDir(opts.MediaDir),
		WithMaxMediaBytes(opts.MaxMediaBytes),
	), nil
}

// RegisterProviderFactory registers the gemini factory once.
func RegisterProviderFactory() {
	if registry.IsRegistered(ProviderType) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "Google Gemini API provider",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

var _ ports.ModelInvoker = (*Provider)(nil)
