// Package llm is a focused Gemini client for single-image analysis with
// function calling. The caller supplies the tools; the client runs the
// call/response loop until the model stops asking for them.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxSteps caps the function-calling loop. The model gets its tool results
// back at most this many times before we take whatever text it produced.
const maxSteps = 4

// Tool is a model-invocable action. Handle receives the model's arguments
// and its return value is serialized back as the function response.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handle      func(ctx context.Context, args json.RawMessage) (any, error)
}

// InvokeRequest is one analysis call: a system prompt, a user prompt, one
// image and the tools offered to the model.
type InvokeRequest struct {
	SystemPrompt string
	Prompt       string
	ImageData    []byte
	ImageMIME    string
	Tools        []Tool
}

// ToolCall records that the model invoked a tool, and with what arguments.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// InvokeResult is the model's final text plus every tool call it made.
type InvokeResult struct {
	Text      string
	ToolCalls []ToolCall
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client calls the Gemini generateContent API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Gemini client for the given model.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	if model == "" {
		return nil, errors.New("gemini: model must not be empty")
	}
	c := &Client{
		baseURL: "https://generativelanguage.googleapis.com",
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Wire types for the generateContent endpoint. Kept minimal: only the fields
// this client reads or writes.

type part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *inlineData       `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type functionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content      `json:"systemInstruction,omitempty"`
	Contents          []content     `json:"contents"`
	Tools             []requestTool `json:"tools,omitempty"`
}

type requestTool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Analyze sends the image and prompt to the model and runs the
// function-calling loop: every functionCall the model returns is executed
// through its Tool.Handle and the result fed back, up to maxSteps rounds.
func (c *Client) Analyze(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	if len(req.ImageData) == 0 {
		return InvokeResult{}, errors.New("gemini: image data must not be empty")
	}
	mime := req.ImageMIME
	if mime == "" {
		mime = "image/jpeg"
	}

	toolsByName := make(map[string]Tool, len(req.Tools))
	var decls []functionDeclaration
	for _, t := range req.Tools {
		toolsByName[t.Name] = t
		decls = append(decls, functionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}

	contents := []content{{
		Role: "user",
		Parts: []part{
			{Text: req.Prompt},
			{InlineData: &inlineData{
				MIMEType: mime,
				Data:     base64.StdEncoding.EncodeToString(req.ImageData),
			}},
		},
	}}

	var result InvokeResult

	for step := 0; step < maxSteps; step++ {
		body := generateRequest{Contents: contents}
		if req.SystemPrompt != "" {
			body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
		}
		if len(decls) > 0 {
			body.Tools = []requestTool{{FunctionDeclarations: decls}}
		}

		resp, err := c.generate(ctx, body)
		if err != nil {
			return InvokeResult{}, err
		}
		if len(resp.Candidates) == 0 {
			return InvokeResult{}, errors.New("gemini: no candidates in response")
		}

		modelContent := resp.Candidates[0].Content
		modelContent.Role = "model"

		var calls []part
		for _, p := range modelContent.Parts {
			if p.Text != "" {
				result.Text += p.Text
			}
			if p.FunctionCall != nil {
				calls = append(calls, p)
			}
		}

		if len(calls) == 0 {
			return result, nil
		}

		// Execute each requested call and feed the results back.
		contents = append(contents, modelContent)
		var responses []part
		for _, p := range calls {
			fc := p.FunctionCall
			result.ToolCalls = append(result.ToolCalls, ToolCall{Name: fc.Name, Args: fc.Args})

			tool, ok := toolsByName[fc.Name]
			var output any
			if !ok {
				output = map[string]any{"error": fmt.Sprintf("unknown tool %q", fc.Name)}
			} else {
				out, err := tool.Handle(ctx, fc.Args)
				if err != nil {
					// Tool failures go back to the model as data, not up the stack.
					output = map[string]any{"error": err.Error()}
				} else {
					output = out
				}
			}
			responses = append(responses, part{FunctionResponse: &functionResponse{
				Name:     fc.Name,
				Response: output,
			}})
		}
		contents = append(contents, content{Role: "user", Parts: responses})
	}

	return result, nil
}

func (c *Client) generate(ctx context.Context, body generateRequest) (*generateResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response body: %w", err)
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	return &payload, nil
}
