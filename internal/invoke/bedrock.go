package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"

	"llmevalbench/internal/registry"
)

const anthropicVersion = "bedrock-2023-05-31"

// BedrockClient invokes models through the Bedrock runtime. Request and
// response bodies are provider-specific, so marshalling is switched on the
// model's provider tag.
type BedrockClient struct {
	svc *bedrockruntime.BedrockRuntime
}

// NewBedrockClient builds a client for the given region using the ambient
// AWS credential chain.
func NewBedrockClient(region string) *BedrockClient {
	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))
	return &BedrockClient{svc: bedrockruntime.New(sess)}
}

func (c *BedrockClient) Invoke(ctx context.Context, model registry.ModelSpec, prompt string) (Completion, error) {
	body, err := bedrockRequestBody(model, prompt)
	if err != nil {
		return Completion{}, &Error{Kind: KindUnknown, Model: model.Name, Err: err}
	}

	out, err := c.svc.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Completion{}, &Error{Kind: classifyBedrockError(err), Model: model.Name, Err: err}
	}

	completion, err := parseBedrockResponse(model.Provider, out.Body)
	if err != nil {
		return Completion{}, &Error{Kind: KindMalformedResponse, Model: model.Name, Err: err}
	}
	return completion, nil
}

func bedrockRequestBody(model registry.ModelSpec, prompt string) ([]byte, error) {
	p := model.GenerationParams
	switch model.Provider {
	case "anthropic":
		return json.Marshal(map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        p.MaxTokens,
			"temperature":       p.Temperature,
			"top_p":             p.TopP,
			"messages": []map[string]any{
				{
					"role": "user",
					"content": []map[string]any{
						{"type": "text", "text": prompt},
					},
				},
			},
		})
	case "meta":
		return json.Marshal(map[string]any{
			"prompt":      prompt,
			"max_gen_len": p.MaxTokens,
			"temperature": p.Temperature,
			"top_p":       p.TopP,
		})
	case "amazon":
		return json.Marshal(map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": p.MaxTokens,
				"temperature":   p.Temperature,
				"topP":          p.TopP,
			},
		})
	default:
		return json.Marshal(map[string]any{
			"prompt":      prompt,
			"max_tokens":  p.MaxTokens,
			"temperature": p.Temperature,
			"top_p":       p.TopP,
		})
	}
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type metaResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
}

type titanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount int    `json:"tokenCount"`
		OutputText string `json:"outputText"`
	} `json:"results"`
}

type genericResponse struct {
	Completion    string `json:"completion"`
	GeneratedText string `json:"generated_text"`
}

func parseBedrockResponse(provider string, body []byte) (Completion, error) {
	switch provider {
	case "anthropic":
		var resp anthropicResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Completion{}, fmt.Errorf("decoding response: %w", err)
		}
		if len(resp.Content) == 0 {
			return Completion{}, errors.New("response contains no content blocks")
		}
		return Completion{
			Text: resp.Content[0].Text,
			Usage: &Usage{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			},
		}, nil
	case "meta":
		var resp metaResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Completion{}, fmt.Errorf("decoding response: %w", err)
		}
		return Completion{
			Text: resp.Generation,
			Usage: &Usage{
				InputTokens:  resp.PromptTokenCount,
				OutputTokens: resp.GenerationTokenCount,
			},
		}, nil
	case "amazon":
		var resp titanResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Completion{}, fmt.Errorf("decoding response: %w", err)
		}
		if len(resp.Results) == 0 {
			return Completion{}, errors.New("response contains no results")
		}
		return Completion{
			Text: resp.Results[0].OutputText,
			Usage: &Usage{
				InputTokens:  resp.InputTextTokenCount,
				OutputTokens: resp.Results[0].TokenCount,
			},
		}, nil
	default:
		var resp genericResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return Completion{}, fmt.Errorf("decoding response: %w", err)
		}
		text := resp.Completion
		if text == "" {
			text = resp.GeneratedText
		}
		if text == "" {
			return Completion{}, errors.New("response contains no completion text")
		}
		return Completion{Text: text}, nil
	}
}

func classifyBedrockError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "ThrottlingException", "TooManyRequestsException":
			return KindThrottled
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return KindAuth
		case "ModelTimeoutException", request.ErrCodeResponseTimeout:
			return KindTimeout
		}
	}
	return KindUnknown
}
