package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"medreel/internal/config"
)

// Keep replies short and predictable; the intake prompt drives structure.
const defaultMaxTokens = 1000

const defaultTemperature = float32(0.5)

// Service is the model-invocation collaborator: given the intake system
// prompt, the prior turns, and the newest user input, produce one reply.
type Service struct {
	chatModel    model.ToolCallingChatModel
	agent        *react.Agent
	systemPrompt string
}

// NewService builds the configured provider's chat model once at startup.
// When research is enabled and at least one search backend is available,
// replies route through a react agent that may consult the web before
// drafting.
func NewService(ctx context.Context, cfg *config.Config, systemPrompt string) (*Service, error) {
	if systemPrompt == "" {
		return nil, errors.New("system prompt is required")
	}
	provider := cfg.BasicConfig.Provider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var chatModel model.ToolCallingChatModel
	var err error
	maxTokens := defaultMaxTokens
	temperature := defaultTemperature

	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     provCfg.BaseURL,
			Model:       provCfg.Model,
			APIKey:      provCfg.APIKey,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       provCfg.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      provCfg.APIKey,
			Model:       provCfg.Model,
			BaseURL:     baseURLPtr,
			MaxTokens:   maxTokens,
			Temperature: &temperature,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	var agent *react.Agent
	if cfg.BasicConfig.EnableResearch {
		tools := initResearchTools()
		if len(tools) > 0 {
			agent, err = react.NewAgent(ctx, &react.AgentConfig{
				ToolCallingModel: chatModel,
				ToolsConfig: compose.ToolsNodeConfig{
					Tools: tools,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("init research agent: %w", err)
			}
		}
	}

	return &Service{
		chatModel:    chatModel,
		agent:        agent,
		systemPrompt: systemPrompt,
	}, nil
}

// Complete runs one model turn: system prompt, prior history oldest
// first, then the new user input. The call blocks until the provider
// replies; deadlines come from the caller's context.
func (s *Service) Complete(ctx context.Context, prior []*schema.Message, input string) (string, error) {
	if input == "" {
		return "", errors.New("input cannot be empty")
	}
	messages := make([]*schema.Message, 0, len(prior)+2)
	messages = append(messages, &schema.Message{Role: schema.System, Content: s.systemPrompt})
	messages = append(messages, prior...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: input})

	var (
		resp *schema.Message
		err  error
	)
	if s.agent != nil {
		resp, err = s.agent.Generate(ctx, messages)
	} else {
		resp, err = s.chatModel.Generate(ctx, messages)
	}
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return resp.Content, nil
}
