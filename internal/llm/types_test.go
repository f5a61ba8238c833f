package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Kind(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Kind
	}{
		{name: "plain answer", msg: Message{Role: RoleAssistant, Content: "answer"}, want: KindText},
		{name: "empty assistant", msg: Message{Role: RoleAssistant}, want: KindText},
		{name: "tool request", msg: Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "t"}}}, want: KindToolRequest},
		{name: "tool request with text", msg: Message{Role: RoleAssistant, Content: "thinking", ToolCalls: []ToolCall{{ID: "c1"}, {ID: "c2"}}}, want: KindToolRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Kind())
		})
	}

	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "tool_request", KindToolRequest.String())
}

func TestToolCall_StringArg(t *testing.T) {
	tc := ToolCall{Arguments: map[string]any{"query": "late filing", "pagenum": float64(2)}}

	q, ok := tc.StringArg("query")
	assert.True(t, ok)
	assert.Equal(t, "late filing", q)

	_, ok = tc.StringArg("pagenum")
	assert.False(t, ok, "non-string arguments are not coerced")

	_, ok = tc.StringArg("missing")
	assert.False(t, ok)

	var empty ToolCall
	_, ok = empty.StringArg("query")
	assert.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{APIKey: "k", APIURL: "u", Model: "m", MaxTokens: 1, Temperature: 0, Timeout: 1}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: "API key"},
		{name: "missing url", mutate: func(c *Config) { c.APIURL = "" }, wantErr: "API URL"},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: "model"},
		{name: "zero tokens", mutate: func(c *Config) { c.MaxTokens = 0 }, wantErr: "max tokens"},
		{name: "hot temperature", mutate: func(c *Config) { c.Temperature = 2.5 }, wantErr: "temperature"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_WithModel(t *testing.T) {
	base := Config{Model: "openai/gpt-4o"}

	assert.Equal(t, "openai/gpt-4o-mini", base.WithModel("openai/gpt-4o-mini").Model)
	assert.Equal(t, "openai/gpt-4o", base.WithModel("").Model)
	assert.Equal(t, "openai/gpt-4o", base.Model, "WithModel must not mutate the receiver")
}

func TestConfig_GetHeaders(t *testing.T) {
	c := Config{}
	assert.Empty(t, c.GetHeaders())

	c.SiteURL = "https://lexiguard.example"
	c.AppName = "lexiguard"
	headers := c.GetHeaders()
	assert.Equal(t, "https://lexiguard.example", headers["HTTP-Referer"])
	assert.Equal(t, "lexiguard", headers["X-Title"])
}
