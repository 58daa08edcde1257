package backend

import (
	"context"
	"testing"

	"github.com/spigell/recruitgenie/internal/ai"
	"github.com/spigell/recruitgenie/internal/gateway"
)

func TestGatewayAgainstServer(t *testing.T) {
	assistant := &fakeAssistant{reply: &ai.Reply{
		Response: "Noted.",
		ExtractedData: map[string]any{
			"industry": "healthcare",
			"location": "Remote",
			"roles":    []any{map[string]any{"role": "nurse", "count": float64(3)}},
			"urgency":  "low",
		},
	}}
	ts, _ := newTestServer(t, assistant)

	client := gateway.New(nil, ts.URL+"/")
	ctx := context.Background()

	history, err := client.FetchHistory(ctx, "session with spaces")
	if err != nil {
		t.Fatalf("FetchHistory returned error: %v", err)
	}
	if len(history) != 1 || history[0].Text != GreetingText {
		t.Fatalf("expected greeting, got %+v", history)
	}

	data, err := client.FetchExtractedData(ctx, "session with spaces")
	if err != nil {
		t.Fatalf("FetchExtractedData returned error: %v", err)
	}
	if data == nil || data.HasRoles() || data.Industry != "" {
		t.Fatalf("expected empty profile, got %+v", data)
	}

	resp, err := client.SendMessage(ctx, "session with spaces", "three remote nurses")
	if err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if resp.Response != "Noted." {
		t.Fatalf("unexpected response %q", resp.Response)
	}
	if resp.ExtractedData == nil || len(resp.ExtractedData.Roles) != 1 || resp.ExtractedData.Roles[0].Count != 3 {
		t.Fatalf("unexpected extracted data %+v", resp.ExtractedData)
	}

	history, err = client.FetchHistory(ctx, "session with spaces")
	if err != nil {
		t.Fatalf("FetchHistory returned error: %v", err)
	}
	if len(history) != 3 || history[2].Role != gateway.RoleModel {
		t.Fatalf("expected greeting and both turns, got %+v", history)
	}
}
