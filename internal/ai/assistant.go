package ai

import "context"

// Turn is one stored conversation entry handed to the assistant as context.
type Turn struct {
	Role string
	Text string
}

// Reply is the assistant answer together with the hiring profile it extracted.
// ExtractedData is kept loosely typed: it is stored and relayed to clients as-is.
type Reply struct {
	Response      string
	ExtractedData map[string]any
	Raw           string
}

type Assistant interface {
	Reply(ctx context.Context, history []Turn, message string) (*Reply, error)
}
