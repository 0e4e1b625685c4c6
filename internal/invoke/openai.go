package invoke

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"llmevalbench/internal/registry"
)

// OpenAIClient invokes OpenAI-compatible chat completion endpoints.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient targets an OpenAI-compatible endpoint. An empty endpoint
// uses the official API base URL.
func NewOpenAIClient(endpoint, apiKey string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		config.BaseURL = endpoint
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(config)}
}

func (c *OpenAIClient) Invoke(ctx context.Context, model registry.ModelSpec, prompt string) (Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model.ModelID,
		MaxTokens:   model.GenerationParams.MaxTokens,
		Temperature: float32(model.GenerationParams.Temperature),
		TopP:        float32(model.GenerationParams.TopP),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Completion{}, &Error{Kind: classifyOpenAIError(err), Model: model.Name, Err: err}
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &Error{
			Kind:  KindMalformedResponse,
			Model: model.Name,
			Err:   errors.New("response contains no choices"),
		}
	}
	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func classifyOpenAIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindThrottled
		}
	}
	return KindUnknown
}
