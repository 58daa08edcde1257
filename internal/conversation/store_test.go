package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/recruitgenie/internal/ai"
	"github.com/spigell/recruitgenie/internal/backend"
	"github.com/spigell/recruitgenie/internal/gateway"
	"github.com/spigell/recruitgenie/internal/recommend"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeGateway struct {
	history    func(ctx context.Context, sessionID string) ([]gateway.Message, error)
	data       func(ctx context.Context, sessionID string) (*gateway.ExtractedData, error)
	send       func(ctx context.Context, sessionID, text string) (*gateway.ChatResponse, error)
	sendCalled int
}

func (f *fakeGateway) FetchHistory(ctx context.Context, sessionID string) ([]gateway.Message, error) {
	if f.history == nil {
		return nil, nil
	}
	return f.history(ctx, sessionID)
}

func (f *fakeGateway) FetchExtractedData(ctx context.Context, sessionID string) (*gateway.ExtractedData, error) {
	if f.data == nil {
		return nil, nil
	}
	return f.data(ctx, sessionID)
}

func (f *fakeGateway) SendMessage(ctx context.Context, sessionID, text string) (*gateway.ChatResponse, error) {
	f.sendCalled++
	return f.send(ctx, sessionID, text)
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.UnixMilli(1700000000000) }
}

func TestLoad(t *testing.T) {
	history := []gateway.Message{
		{ID: "1", Role: gateway.RoleModel, Text: "Hello!"},
		{ID: "2", Role: gateway.RoleUser, Text: "Hi"},
	}
	profile := &gateway.ExtractedData{Industry: "Retail", Roles: []gateway.RoleRequirement{{Role: "Cashier", Count: 3}}}

	gw := &fakeGateway{
		history: func(_ context.Context, sessionID string) ([]gateway.Message, error) {
			if sessionID != "s1" {
				t.Errorf("unexpected session id %q", sessionID)
			}
			return history, nil
		},
		data: func(context.Context, string) (*gateway.ExtractedData, error) {
			return profile, nil
		},
	}

	store := New(gw, "s1", zap.NewNop())
	store.Load(context.Background())

	if got := store.Messages(); len(got) != 2 || got[0].Text != "Hello!" || got[1].Text != "Hi" {
		t.Fatalf("unexpected messages: %+v", got)
	}

	if store.Extracted().Industry != "Retail" {
		t.Fatalf("unexpected profile: %+v", store.Extracted())
	}

	service, ok := store.Recommendation()
	if !ok || service.Name != recommend.GeneralRecruitment {
		t.Fatalf("expected %q, got %q (%v)", recommend.GeneralRecruitment, service.Name, ok)
	}

	if store.Loading() {
		t.Fatal("expected loading to be cleared")
	}
}

func TestLoadHistoryFailure(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)

	gw := &fakeGateway{
		history: func(context.Context, string) ([]gateway.Message, error) {
			return nil, errors.New("connection refused")
		},
		data: func(context.Context, string) (*gateway.ExtractedData, error) {
			return &gateway.ExtractedData{Roles: []gateway.RoleRequirement{{Role: "Engineer"}}}, nil
		},
	}

	store := New(gw, "s1", zap.New(core))
	store.Load(context.Background())

	messages := store.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected exactly one message, got %+v", messages)
	}
	if messages[0].ID != InitErrorID || messages[0].Role != gateway.RoleModel || messages[0].Text != InitErrorText {
		t.Fatalf("unexpected fallback message: %+v", messages[0])
	}

	if store.Extracted() != nil {
		t.Fatalf("expected profile to be cleared, got %+v", store.Extracted())
	}
	if store.Loading() {
		t.Fatal("expected loading to be cleared")
	}

	if observed.FilterMessage("failed to fetch initial data").Len() != 1 {
		t.Fatalf("expected failure to be logged, got %+v", observed.All())
	}
}

func TestLoadDataFailure(t *testing.T) {
	gw := &fakeGateway{
		history: func(context.Context, string) ([]gateway.Message, error) {
			return []gateway.Message{{ID: "1", Role: gateway.RoleModel, Text: "Hello!"}}, nil
		},
		data: func(context.Context, string) (*gateway.ExtractedData, error) {
			return nil, gateway.ErrBadStatus
		},
	}

	store := New(gw, "s1", zap.NewNop())
	store.Load(context.Background())

	if messages := store.Messages(); len(messages) != 1 || messages[0].ID != InitErrorID {
		t.Fatalf("expected single fallback message, got %+v", messages)
	}
}

func TestSubmitSuccess(t *testing.T) {
	gw := &fakeGateway{
		send: func(_ context.Context, sessionID, text string) (*gateway.ChatResponse, error) {
			return &gateway.ChatResponse{
				Response: "Noted",
				ExtractedData: &gateway.ExtractedData{
					Roles: []gateway.RoleRequirement{{Role: "Sales Director", Count: 2}},
				},
			}, nil
		},
	}

	store := New(gw, "s1", zap.NewNop(), WithClock(fixedClock()))
	if err := store.Submit(context.Background(), "We need two sales directors"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := store.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %+v", messages)
	}

	if messages[0].ID != "1700000000000" || messages[0].Role != gateway.RoleUser {
		t.Fatalf("unexpected user message: %+v", messages[0])
	}
	if messages[1].ID != "1700000000001" || messages[1].Role != gateway.RoleModel || messages[1].Text != "Noted" {
		t.Fatalf("unexpected reply: %+v", messages[1])
	}

	service, ok := store.Recommendation()
	if !ok || service.Name != recommend.ExecutiveSearch {
		t.Fatalf("expected %q, got %q", recommend.ExecutiveSearch, service.Name)
	}
}

func TestSubmitReplacesProfile(t *testing.T) {
	responses := []*gateway.ChatResponse{
		{Response: "one", ExtractedData: &gateway.ExtractedData{Industry: "Tech", Location: "Berlin"}},
		{Response: "two", ExtractedData: &gateway.ExtractedData{Urgency: "low"}},
	}

	gw := &fakeGateway{}
	gw.send = func(context.Context, string, string) (*gateway.ChatResponse, error) {
		return responses[gw.sendCalled-1], nil
	}

	store := New(gw, "s1", zap.NewNop())
	store.Submit(context.Background(), "first")
	store.Submit(context.Background(), "second")

	profile := store.Extracted()
	if profile.Location != "" || profile.Industry != "" || profile.Urgency != "low" {
		t.Fatalf("expected the whole profile to be replaced, got %+v", profile)
	}
}

func TestSubmitFailureKeepsUserMessage(t *testing.T) {
	profile := &gateway.ExtractedData{Roles: []gateway.RoleRequirement{{Role: "Engineer", Count: 1}}}

	gw := &fakeGateway{
		data: func(context.Context, string) (*gateway.ExtractedData, error) { return profile, nil },
		send: func(context.Context, string, string) (*gateway.ChatResponse, error) {
			return nil, errors.New("connection reset")
		},
	}

	store := New(gw, "s1", zap.NewNop())
	store.Load(context.Background())

	if err := store.Submit(context.Background(), "hello?"); err != nil {
		t.Fatalf("expected failure to be absorbed, got %v", err)
	}

	messages := store.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected user message and one fallback, got %+v", messages)
	}
	if messages[0].Role != gateway.RoleUser || messages[0].Text != "hello?" {
		t.Fatalf("expected user message to be kept, got %+v", messages[0])
	}
	if messages[1].Role != gateway.RoleModel || messages[1].Text != SendErrorText {
		t.Fatalf("expected fallback reply, got %+v", messages[1])
	}

	if store.Extracted() == nil {
		t.Fatal("expected the previous profile to survive a failed send")
	}
	if store.Loading() {
		t.Fatal("expected loading to be cleared")
	}
}

func TestSubmitRejectsBlankText(t *testing.T) {
	gw := &fakeGateway{}
	store := New(gw, "s1", zap.NewNop())

	if err := store.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if gw.sendCalled != 0 || len(store.Messages()) != 0 {
		t.Fatal("expected blank submission to be ignored")
	}
}

func TestSubmitWhileOutstanding(t *testing.T) {
	var store *Store

	gw := &fakeGateway{
		send: func(ctx context.Context, _, _ string) (*gateway.ChatResponse, error) {
			if !store.Loading() {
				t.Error("expected loading while the request is in flight")
			}

			messages := store.Messages()
			if len(messages) != 1 || messages[0].Role != gateway.RoleUser {
				t.Errorf("expected optimistic user message before the reply, got %+v", messages)
			}

			if err := store.Submit(ctx, "again"); !errors.Is(err, ErrBusy) {
				t.Errorf("expected ErrBusy, got %v", err)
			}

			return &gateway.ChatResponse{Response: "done"}, nil
		},
	}

	store = New(gw, "s1", zap.NewNop())
	if err := store.Submit(context.Background(), "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.sendCalled != 1 {
		t.Fatalf("expected a single send, got %d", gw.sendCalled)
	}
	if len(store.Messages()) != 2 {
		t.Fatalf("expected 2 messages, got %+v", store.Messages())
	}
}

func TestLastReply(t *testing.T) {
	store := New(&fakeGateway{}, "s1", zap.NewNop())

	if _, ok := store.LastReply(); ok {
		t.Fatal("did not expect a reply in an empty conversation")
	}

	store.messages = []gateway.Message{
		{ID: "1", Role: gateway.RoleModel, Text: "first"},
		{ID: "2", Role: gateway.RoleUser, Text: "question"},
	}

	reply, ok := store.LastReply()
	if !ok || reply.Text != "first" {
		t.Fatalf("unexpected last reply: %+v", reply)
	}
}

func TestEndToEndWithBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/history/s1":
			w.Write([]byte(`[{"id": "initial", "role": "model", "text": "Hello! How can I help?"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/data/s1":
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPost && r.URL.Path == "/chat":
			var req gateway.ChatRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Message != "We need 2 backend engineers in Berlin" {
				t.Errorf("unexpected message %q", req.Message)
			}
			w.Write([]byte(`{"response": "Got it", "extractedData": {"industry": "Tech", "location": "Berlin",
				"roles": [{"role": "Backend Engineer", "count": 2}], "urgency": "high"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := New(gateway.New(zap.NewNop(), server.URL), "s1", zap.NewNop())
	store.Load(context.Background())

	if _, ok := store.Recommendation(); ok {
		t.Fatal("did not expect a recommendation before any roles are known")
	}

	if err := store.Submit(context.Background(), "We need 2 backend engineers in Berlin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := store.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected greeting plus two new turns, got %+v", messages)
	}
	if messages[1].Role != gateway.RoleUser || messages[1].Text != "We need 2 backend engineers in Berlin" {
		t.Fatalf("unexpected user turn: %+v", messages[1])
	}
	if messages[2].Role != gateway.RoleModel || messages[2].Text != "Got it" {
		t.Fatalf("unexpected model turn: %+v", messages[2])
	}

	service, ok := store.Recommendation()
	if !ok || service.Name != recommend.TechStartupHiringPack {
		t.Fatalf("expected %q, got %q", recommend.TechStartupHiringPack, service.Name)
	}
}

func TestLoadIgnoresMalformedProfile(t *testing.T) {
	gw := &fakeGateway{
		history: func(context.Context, string) ([]gateway.Message, error) {
			return []gateway.Message{{ID: "1", Role: gateway.RoleModel, Text: "Hello!"}}, nil
		},
		data: func(context.Context, string) (*gateway.ExtractedData, error) {
			return nil, fmt.Errorf("decode extracted data: %w", gateway.ErrMalformed)
		},
	}

	store := New(gw, "s1", zap.NewNop())
	store.Load(context.Background())

	messages := store.Messages()
	if len(messages) != 1 || messages[0].ID != "1" {
		t.Fatalf("expected stored history to load, got %+v", messages)
	}
	if store.Extracted() != nil {
		t.Fatalf("expected no profile, got %+v", store.Extracted())
	}
	if store.Loading() {
		t.Fatal("expected loading to be cleared")
	}
}

type scriptedAssistant struct {
	reply *ai.Reply
}

func (a *scriptedAssistant) Reply(context.Context, []ai.Turn, string) (*ai.Reply, error) {
	return a.reply, nil
}

func TestUnknownRoleCountSurvivesRestart(t *testing.T) {
	db, err := backend.NewSQLite(filepath.Join(t.TempDir(), "agent_memory.db"))
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	defer db.Close()

	assistant := &scriptedAssistant{reply: &ai.Reply{
		Response: "How many engineers do you need?",
		ExtractedData: map[string]any{
			"industry": "unknown",
			"roles":    []any{map[string]any{"role": "Backend Engineer", "count": "unknown"}},
		},
	}}
	server := httptest.NewServer(backend.NewServer(backend.Config{}, db, assistant, zap.NewNop()).Handler())
	defer server.Close()

	ctx := context.Background()

	first := New(gateway.New(zap.NewNop(), server.URL), "s1", zap.NewNop())
	first.Load(ctx)
	if err := first.Submit(ctx, "We need backend engineers"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, ok := first.LastReply()
	if !ok || reply.Text != "How many engineers do you need?" {
		t.Fatalf("expected the assistant reply, got %+v", reply)
	}

	restarted := New(gateway.New(zap.NewNop(), server.URL), "s1", zap.NewNop())
	restarted.Load(ctx)

	messages := restarted.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected greeting and both turns after restart, got %+v", messages)
	}
	if messages[0].ID == InitErrorID {
		t.Fatalf("did not expect the init error message, got %+v", messages)
	}

	data := restarted.Extracted()
	if data == nil || len(data.Roles) != 1 || data.Roles[0].Count != 0 {
		t.Fatalf("expected role with defaulted count, got %+v", data)
	}
}

func TestSubmitNotifiesAfterEachTurn(t *testing.T) {
	type snapshot struct {
		last    gateway.Message
		loading bool
	}

	gw := &fakeGateway{
		send: func(context.Context, string, string) (*gateway.ChatResponse, error) {
			return &gateway.ChatResponse{Response: "Which city?"}, nil
		},
	}

	var (
		store     *Store
		snapshots []snapshot
	)
	store = New(gw, "s1", zap.NewNop(), WithOnChange(func() {
		messages := store.Messages()
		snapshots = append(snapshots, snapshot{last: messages[len(messages)-1], loading: store.Loading()})
	}))

	if err := store.Submit(context.Background(), "Two engineers"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshots) != 2 {
		t.Fatalf("expected two notifications, got %+v", snapshots)
	}
	if snapshots[0].last.Role != gateway.RoleUser || !snapshots[0].loading {
		t.Fatalf("expected the user turn while loading, got %+v", snapshots[0])
	}
	if snapshots[1].last.Text != "Which city?" || snapshots[1].loading {
		t.Fatalf("expected the reply after loading cleared, got %+v", snapshots[1])
	}
}
