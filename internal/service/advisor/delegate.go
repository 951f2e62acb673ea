package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
)

// Configuration-store keys consulted before the environment fallback.
const (
	ConfigKeyAPIKey  = "deepseek_api_key"
	ConfigKeyModelID = "model_id"
	ConfigKeyBaseURL = "base_url"

	envAPIKey = "DEEPSEEK_API_KEY"

	defaultModelID = "deepseek-chat"
	defaultBaseURL = "https://api.deepseek.com"

	// DelegateTimeout bounds one reasoning call end to end.
	DelegateTimeout = 30 * time.Second
)

// ErrNoAPIKey means no credential is configured anywhere; the engine treats
// this as a silent skip rather than a failure.
var ErrNoAPIKey = errors.New("no delegate api key configured")

// report is the delegate's JSON reply: the structured narrative plus the
// numeric score the wire schema carries alongside it.
type report struct {
	models.StructuredAnalysis
	Score *float64 `json:"score"`
}

// Delegate calls an OpenAI-compatible chat-completions endpoint to produce a
// structured diagnosis. Credentials and endpoint come from the persisted
// configuration store, falling back to construction defaults and the
// environment.
type Delegate struct {
	client  *xhttp.Client
	configs repository.ConfigStore
	log     *xlogger.Logger

	apiKey  string
	modelID string
	baseURL string
	timeout time.Duration
}

// DelegateOption configures Delegate.
type DelegateOption func(*Delegate)

func WithDelegateConfigStore(cs repository.ConfigStore) DelegateOption {
	return func(d *Delegate) { d.configs = cs }
}

func WithDelegateLogger(log *xlogger.Logger) DelegateOption {
	return func(d *Delegate) { d.log = log }
}

// WithDelegateCredentials sets the construction-time defaults, normally from
// application config.
func WithDelegateCredentials(apiKey, modelID, baseURL string) DelegateOption {
	return func(d *Delegate) {
		d.apiKey = apiKey
		if modelID != "" {
			d.modelID = modelID
		}
		if baseURL != "" {
			d.baseURL = baseURL
		}
	}
}

// WithDelegateTimeout overrides the per-call deadline.
func WithDelegateTimeout(timeout time.Duration) DelegateOption {
	return func(d *Delegate) { d.timeout = timeout }
}

func NewDelegate(client *xhttp.Client, opts ...DelegateOption) *Delegate {
	d := &Delegate{
		client:  client,
		log:     xlogger.Nop(),
		modelID: defaultModelID,
		baseURL: defaultBaseURL,
		timeout: DelegateTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// resolve merges persisted configuration over construction defaults, with
// the environment as the last credential fallback.
func (d *Delegate) resolve(ctx context.Context) (apiKey, modelID, baseURL string) {
	apiKey, modelID, baseURL = d.apiKey, d.modelID, d.baseURL

	if d.configs != nil {
		if v, err := d.configs.GetConfig(ctx, ConfigKeyAPIKey); err == nil && v != "" {
			apiKey = v
		}
		if v, err := d.configs.GetConfig(ctx, ConfigKeyModelID); err == nil && v != "" {
			modelID = v
		}
		if v, err := d.configs.GetConfig(ctx, ConfigKeyBaseURL); err == nil && v != "" {
			baseURL = v
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}
	return apiKey, modelID, baseURL
}

// endpoint builds the chat-completions URL. DeepSeek serves the route at the
// root; other OpenAI-compatible hosts nest it under /v1.
func endpoint(baseURL string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if strings.Contains(baseURL, "deepseek.com") {
		return baseURL + "chat/completions"
	}
	return baseURL + "v1/chat/completions"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Stream bool `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze submits the prompt and parses the structured reply. Every failure
// mode returns an error; the caller decides whether to fall back.
func (d *Delegate) Analyze(ctx context.Context, prompt string) (*report, error) {
	apiKey, modelID, baseURL := d.resolve(ctx)
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	req := chatRequest{
		Model: modelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	req.ResponseFormat.Type = "json_object"

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var resp chatResponse
	err := d.client.SendAndParse(callCtx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    endpoint(baseURL),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + apiKey,
		},
		Body: req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("delegate call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("delegate reply has no choices")
	}

	content := stripJSONFence(resp.Choices[0].Message.Content)
	rep, err := parseReport(content)
	if err != nil {
		return nil, fmt.Errorf("delegate reply: %w", err)
	}
	return rep, nil
}

// parseReport decodes and validates the delegate's JSON. A missing summary
// or stage, or a score outside [0, 100], rejects the whole reply; partial
// structures are never merged.
func parseReport(content string) (*report, error) {
	var rep report
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &rep); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if rep.ShortSummary == "" {
		return nil, errors.New("missing short_summary")
	}
	if rep.Score == nil {
		return nil, errors.New("missing score")
	}
	if *rep.Score < 0 || *rep.Score > 100 {
		return nil, fmt.Errorf("score %v out of range", *rep.Score)
	}
	if rep.MainForce.Stage == "" {
		return nil, errors.New("missing main_force.stage")
	}
	return &rep, nil
}

// stripJSONFence tolerates models that wrap the reply in a ```json block
// despite instructions.
func stripJSONFence(content string) string {
	if !strings.Contains(content, "```json") {
		return content
	}
	parts := strings.Split(content, "```json")
	content = parts[len(parts)-1]
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	return content
}
