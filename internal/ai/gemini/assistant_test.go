package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/recruitgenie/internal/ai"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type stubGenerator struct {
	response    string
	err         error
	lastSystem  string
	lastHistory []*genai.Content
	lastMessage string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system string, history []*genai.Content, message string) (string, error) {
	s.lastSystem = system
	s.lastHistory = history
	s.lastMessage = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestAssistantReply(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"response\": \" Got it \", \"extractedData\": {\"industry\": \"Tech\", \"roles\": [{\"role\": \"Backend Engineer\", \"count\": 2}]}}\n```"}
	assistant := NewAssistant(stub, 0, zap.NewNop())

	history := []ai.Turn{
		{Role: "model", Text: "Hello!"},
		{Role: "user", Text: "Hi"},
		{Role: "system", Text: "dropped"},
		{Role: "user", Text: "   "},
	}

	reply, err := assistant.Reply(context.Background(), history, "We need 2 backend engineers in Berlin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Response != "Got it" {
		t.Fatalf("unexpected response %q", reply.Response)
	}
	if reply.ExtractedData["industry"] != "Tech" {
		t.Fatalf("unexpected extracted data: %+v", reply.ExtractedData)
	}
	if reply.Raw == "" {
		t.Fatal("expected raw response to be kept")
	}

	if !strings.Contains(stub.lastSystem, "RecruitGenie") {
		t.Fatalf("expected system prompt to be sent, got %q", stub.lastSystem)
	}
	if stub.lastMessage != "We need 2 backend engineers in Berlin" {
		t.Fatalf("unexpected message %q", stub.lastMessage)
	}

	if len(stub.lastHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(stub.lastHistory))
	}
	if stub.lastHistory[0].Role != genai.RoleModel || stub.lastHistory[1].Role != genai.RoleUser {
		t.Fatalf("unexpected roles: %q, %q", stub.lastHistory[0].Role, stub.lastHistory[1].Role)
	}
}

func TestAssistantReplyWithoutExtractedData(t *testing.T) {
	stub := &stubGenerator{response: `{"response": "Tell me more"}`}

	reply, err := NewAssistant(stub, 10, nil).Reply(context.Background(), nil, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.ExtractedData == nil || len(reply.ExtractedData) != 0 {
		t.Fatalf("expected empty extracted data, got %+v", reply.ExtractedData)
	}
}

func TestAssistantReplyErrors(t *testing.T) {
	boom := errors.New("quota exceeded")

	if _, err := NewAssistant(&stubGenerator{err: boom}, 0, nil).Reply(context.Background(), nil, "hi"); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}

	if _, err := NewAssistant(&stubGenerator{response: "plain text"}, 0, nil).Reply(context.Background(), nil, "hi"); err == nil {
		t.Fatal("expected parse error for non-json response")
	}
}
