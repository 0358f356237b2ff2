// Package llm adapts the Anthropic Messages API to the request and response
// shapes the sentiment and chat services use.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/utafrali/revu/pkg/errors"
	"github.com/utafrali/revu/pkg/httpclient"
)

const (
	// APIName labels Anthropic in errors and breaker metrics.
	APIName = "anthropic"

	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-haiku-4-5-20251001"
)

// Config holds Anthropic client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Message is one conversation turn. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Tool declares a tool the model may call. InputSchema is a JSON Schema object.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolChoice forces the model to call a specific tool.
type ToolChoice struct {
	Type string
	Name string
}

// Request is a Messages API request. Model defaults to the client's model.
type Request struct {
	Model      string
	MaxTokens  int
	System     string
	Messages   []Message
	Tools      []Tool
	ToolChoice *ToolChoice
}

// ContentBlock is a text or tool_use block of a response.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a Messages API response.
type Response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
	Usage      Usage          `json:"usage"`
}

// ToolInput returns the input of the first tool_use block calling name.
func (r *Response) ToolInput(name string) (json.RawMessage, bool) {
	for _, b := range r.Content {
		if b.Type == "tool_use" && b.Name == name {
			return b.Input, true
		}
	}
	return nil, false
}

// Text concatenates every text block.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Client calls the Messages API through the Anthropic SDK. Requests go out
// over the supplied Doer, so retries and circuit breaking stay in httpclient.
type Client struct {
	cfg Config
	api anthropic.Client
}

// NewClient creates an Anthropic client. Empty BaseURL and Model use defaults.
func NewClient(cfg Config, doer httpclient.Doer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	api := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(sdkDoer{next: doer}),
		option.WithMaxRetries(0),
	)
	return &Client{cfg: cfg, api: api}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// CreateMessage sends req. Without an API key it fails immediately with a
// not-configured error and makes no network call.
func (c *Client) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	if !c.Configured() {
		return nil, apperrors.NotConfigured(APIName)
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	msg, err := c.api.Messages.New(ctx, newParams(req))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, httpclient.StatusErrorFromBody(APIName, apiErr.StatusCode, []byte(apiErr.RawJSON()))
		}
		return nil, apperrors.Upstream(APIName, err)
	}

	return fromMessage(msg), nil
}

// newParams maps req onto the SDK's request parameters.
func newParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(req.Messages)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	for _, t := range req.Tools {
		tool := anthropic.ToolUnionParamOfTool(inputSchema(t.InputSchema), t.Name)
		if t.Description != "" {
			tool.OfTool.Description = anthropic.String(t.Description)
		}
		params.Tools = append(params.Tools, tool)
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Type {
		case "tool":
			params.ToolChoice = anthropic.ToolChoiceParamOfTool(req.ToolChoice.Name)
		case "any":
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
		default:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}
	return params
}

// inputSchema splits a JSON Schema object into the SDK's typed fields.
// Keys other than type, properties and required pass through unchanged.
func inputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	var out anthropic.ToolInputSchemaParam
	for k, v := range schema {
		switch k {
		case "type":
		case "properties":
			out.Properties = v
		case "required":
			out.Required = requiredFields(v)
		default:
			if out.ExtraFields == nil {
				out.ExtraFields = make(map[string]any)
			}
			out.ExtraFields[k] = v
		}
	}
	return out
}

func requiredFields(v any) []string {
	switch fields := v.(type) {
	case []string:
		return fields
	case []any:
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func fromMessage(msg *anthropic.Message) *Response {
	out := &Response{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Content:    make([]ContentBlock, 0, len(msg.Content)),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, b := range msg.Content {
		out.Content = append(out.Content, ContentBlock{
			Type:  b.Type,
			Text:  b.Text,
			ID:    b.ID,
			Name:  b.Name,
			Input: b.Input,
		})
	}
	return out
}

// sdkDoer lets the SDK send requests through an httpclient.Doer.
type sdkDoer struct {
	next httpclient.Doer
}

func (d sdkDoer) Do(req *http.Request) (*http.Response, error) {
	return d.next.Do(req.Context(), req)
}
