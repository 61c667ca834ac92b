package llm

import (
	"context"
	"strings"
	"testing"
)

func TestFlattenFoldsSystemIntoFirstUserTurn(t *testing.T) {
	flat := flattenForAnthropic([]ChatMessage{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}, false)

	if len(flat) != 2 {
		t.Fatalf("len = %d, want 2", len(flat))
	}
	if flat[0].Role != RoleUser || !strings.HasPrefix(flat[0].Content, "You are helpful.") {
		t.Errorf("first turn = %+v", flat[0])
	}
	if !strings.Contains(flat[0].Content, "hi") {
		t.Errorf("user content dropped: %q", flat[0].Content)
	}
	if flat[1].Role != RoleAssistant {
		t.Errorf("second turn role = %q", flat[1].Role)
	}
}

func TestFlattenForceJSONAddsInstruction(t *testing.T) {
	flat := flattenForAnthropic([]ChatMessage{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "reply as an envelope"},
	}, true)

	if len(flat) != 1 {
		t.Fatalf("len = %d, want 1", len(flat))
	}
	if !strings.Contains(flat[0].Content, jsonOnlyInstruction) {
		t.Errorf("forced-JSON instruction missing from %q", flat[0].Content)
	}

	plain := flattenForAnthropic([]ChatMessage{
		{Role: RoleUser, Content: "hi"},
	}, false)
	if strings.Contains(plain[0].Content, jsonOnlyInstruction) {
		t.Error("instruction must only appear in forced-JSON mode")
	}
}

func TestAnthropicRejectsToolCatalogs(t *testing.T) {
	c := &AnthropicClient{}
	_, err := c.Complete(context.Background(), &CompletionRequest{
		Tools: []ToolDef{{Name: "query_leads"}},
	})
	if err != ErrToolsUnsupported {
		t.Errorf("err = %v, want ErrToolsUnsupported", err)
	}
}
