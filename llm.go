package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

const classifierSystemPrompt = `You are an AI analyst for a product feedback system. Analyze Discord messages for:
1. Bug reports and issues
2. Feature requests
3. User complaints
4. Positive feedback
5. Documentation requests

For each message, respond with a JSON object containing:
{
  "requiresAlert": boolean,
  "category": "bug|feature_request|complaint|praise|documentation|other",
  "severity": "critical|high|medium|low" (only for bugs/complaints),
  "summary": "Brief one-line summary",
  "recommendation": "Suggested action or response"
}

Only set requiresAlert to true if the message contains actionable feedback:
- Bugs or technical issues
- Clear feature requests
- Strong user complaints
- Documentation gaps (e.g., users asking how to do basic things that should be documented)

Ignore general chat, casual greetings, or off-topic conversations.`

// Classifier turns raw message text into a Verdict. Implementations call an
// external model; transport failures surface as errors, unparseable output
// does not (see parseVerdictResponse).
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

func NewClassifier(cfg Config) Classifier {
	switch cfg.LLMProvider {
	case "openai":
		model := cfg.LLMModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return &openAIClassifier{
			client: openai.NewClient(cfg.OpenAIAPIKey),
			model:  model,
		}
	default:
		model := cfg.LLMModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return &anthropicClassifier{
			client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
			model:  model,
		}
	}
}

// --- Anthropic ---

type anthropicClassifier struct {
	client anthropic.Client
	model  string
}

func (c *anthropicClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	log.Printf("llm classify provider=anthropic model=%s chars=%d", c.model, len(text))

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 300,
		System: []anthropic.TextBlockParam{
			{Text: classifierSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return Verdict{}, fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return parseVerdictResponse(block.Text), nil
		}
	}
	return Verdict{}, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI ---

type openAIClassifier struct {
	client *openai.Client
	model  string
}

func (c *openAIClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	log.Printf("llm classify provider=openai model=%s chars=%d", c.model, len(text))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return Verdict{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("no choices in OpenAI response")
	}

	content := resp.Choices[0].Message.Content
	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d",
		len(content), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return parseVerdictResponse(content), nil
}

// --- Response parsing ---

var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// parseVerdictResponse extracts the first {...} span from the raw model
// output and unmarshals it. Anything unparseable maps to the fallback
// verdict rather than an error: a confused model means "no alert", not a
// failed message.
func parseVerdictResponse(responseText string) Verdict {
	match := jsonObjectRegex.FindString(responseText)
	if match == "" {
		log.Printf("llm response has no JSON object, using fallback verdict")
		return FallbackVerdict()
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(match), &verdict); err != nil {
		log.Printf("llm response parse error: %v, using fallback verdict", err)
		return FallbackVerdict()
	}

	verdict.Category = strings.ToLower(strings.TrimSpace(verdict.Category))
	if !validCategory(verdict.Category) {
		verdict.Category = CategoryOther
	}
	verdict.Severity = strings.ToLower(strings.TrimSpace(verdict.Severity))
	if !validSeverity(verdict.Severity) {
		verdict.Severity = ""
	}
	verdict.Summary = strings.TrimSpace(verdict.Summary)
	verdict.Recommendation = strings.TrimSpace(verdict.Recommendation)
	return verdict
}
