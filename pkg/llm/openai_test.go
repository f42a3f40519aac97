package llm

import "testing"

// ── request shaping ──

func TestBuildParamsPrefersMessagesOverPrompt(t *testing.T) {
	p := &OpenAIProvider{name: "test", model: "test-model"}

	req := Request{
		Prompt: "raw prompt that must be dropped",
		Messages: []Message{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi there"},
		},
	}

	params := p.buildParams(req)
	if len(params.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3 (raw prompt must not be appended)", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("message 0 should be a system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("message 1 should be a user message")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Error("message 2 should be an assistant message")
	}
}

func TestBuildParamsPromptOnly(t *testing.T) {
	p := &OpenAIProvider{name: "test", model: "test-model"}

	params := p.buildParams(Request{Prompt: "just a prompt"})
	if len(params.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(params.Messages))
	}
	if params.Messages[0].OfUser == nil {
		t.Error("prompt should become a single user message")
	}
}

func TestBuildParamsOptions(t *testing.T) {
	p := &OpenAIProvider{name: "test", model: "test-model"}

	temp := 0.2
	maxTokens := int64(512)
	params := p.buildParams(Request{
		Prompt:  "hi",
		Options: Options{Temperature: &temp, MaxTokens: &maxTokens},
	})
	if params.Temperature.Value != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", params.Temperature.Value)
	}
	if params.MaxTokens.Value != 512 {
		t.Errorf("MaxTokens = %v, want 512", params.MaxTokens.Value)
	}
}
