package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// NVIDIABaseURL is the OpenAI-compatible endpoint hosting the Nemotron
// generation and reward models.
const NVIDIABaseURL = "https://integrate.api.nvidia.com/v1"

// OpenAIClient talks to any OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client       *openai.Client
	model        string
	scoringModel string

	Stats *Stats
}

// NewOpenAIClient builds a client. An empty baseURL uses api.openai.com; an
// empty scoringModel disables Score.
func NewOpenAIClient(apiKey, baseURL, model, scoringModel string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		scoringModel: scoringModel,
		Stats:        NewStats(time.Hour),
	}
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (out string, err error) {
	start := time.Now()
	defer func() { c.Stats.Observe(start, err) }()

	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Score sends the question/answer exchange to the reward model and returns
// its per-token log probabilities keyed by token.
func (c *OpenAIClient) Score(ctx context.Context, question, answer string) (scores map[string]float64, err error) {
	if c.scoringModel == "" {
		return nil, errors.New("llm: no scoring model configured")
	}
	start := time.Now()
	defer func() { c.Stats.Observe(start, err) }()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.scoringModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: question},
			{Role: openai.ChatMessageRoleAssistant, Content: answer},
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].LogProbs == nil {
		return nil, fmt.Errorf("score: %w", ErrEmptyResponse)
	}
	scores = make(map[string]float64, len(resp.Choices[0].LogProbs.Content))
	for _, lp := range resp.Choices[0].LogProbs.Content {
		scores[lp.Token] = lp.LogProb
	}
	return scores, nil
}

// classify turns rate limits and server errors into RetryableError.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && retryableStatus(apiErr.HTTPStatusCode) {
		return &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && retryableStatus(reqErr.HTTPStatusCode) {
		return &RetryableError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("openai api: %w", err)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
