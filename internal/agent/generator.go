package agent

import (
	"context"
	"fmt"

	"github.com/abadojack/whatlanggo"
	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/lexiguard/lexiguard/internal/tools"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Generator produces exactly one assistant message for the conversation so far.
// It must not modify messages.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) (llm.Message, error)
}

// ModelGenerator generates with a chat model that has the registry's tools bound.
type ModelGenerator struct {
	model        llm.ChatModel
	tools        []llm.ToolDefinition
	languageHint bool
}

// GeneratorOption configures a ModelGenerator.
type GeneratorOption func(*ModelGenerator)

// WithLanguageHint asks the model to answer in the language of the latest
// user message when that language can be detected reliably.
func WithLanguageHint(enabled bool) GeneratorOption {
	return func(g *ModelGenerator) {
		g.languageHint = enabled
	}
}

func NewModelGenerator(model llm.ChatModel, registry *tools.Registry, opts ...GeneratorOption) *ModelGenerator {
	g := &ModelGenerator{model: model}
	if registry != nil {
		g.tools = registry.ToOpenAIFormat()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *ModelGenerator) Generate(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	prompt := systemPrompt
	if g.languageHint {
		if name, ok := answerLanguage(messages); ok {
			prompt += fmt.Sprintf(languageHintTemplate, name)
		}
	}

	req := llm.ChatRequest{
		Messages: append([]llm.Message{{Role: llm.RoleSystem, Content: prompt}}, messages...),
		Tools:    g.tools,
	}
	msg, err := g.model.Chat(ctx, req)
	if err != nil {
		return llm.Message{}, err
	}
	if msg == nil {
		return llm.Message{}, fmt.Errorf("model returned no message")
	}
	out := *msg
	out.Role = llm.RoleAssistant
	return out, nil
}

// answerLanguage returns the English name of the language of the latest user message.
func answerLanguage(messages []llm.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llm.RoleUser {
			continue
		}
		info := whatlanggo.Detect(messages[i].Content)
		if !info.IsReliable() {
			return "", false
		}
		iso := info.Lang.Iso6391()
		if iso == "" {
			return "", false
		}
		tag := language.All.Make(iso)
		if tag == language.Und {
			return "", false
		}
		name := display.English.Languages().Name(tag)
		return name, name != ""
	}
	return "", false
}
