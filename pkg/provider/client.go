// Package provider declares the minimal contract the gateway requires of
// an upstream token-stream provider: spec.md §1 names this an external
// collaborator, "a function streaming textual token deltas with
// cancellation." The shape is grounded on the teacher's
// provider.LanguageModel.DoStream / TextStream interface (Next() returns
// the next chunk, io.EOF ends the stream, cancellation flows through
// ctx), collapsed to the single ChunkTypeText concern this gateway
// drives: everything else (embeddings, images, speech) is the teacher's
// surface area, not this one's.
package provider

import "context"

// Message is one turn of the conversation sent to the provider. Role
// follows the usual "system"/"user"/"assistant"/"tool" convention; tool
// outcomes are appended as assistant-visible "TOOL_RESULT id=... name=..."
// records per spec.md §4.6, so Message stays a flat role/content pair
// rather than growing a parallel tool-call shape of its own.
type Message struct {
	Role    string
	Content string
}

// Request is one provider round: the full message list plus the
// deterministic generation parameters config.Config carries.
type Request struct {
	Messages    []Message
	ModelID     string
	Temperature float64
	Seed        int
	MaxTokens   int
}

// TokenStream yields token-level text deltas for one round. Next returns
// io.EOF (wrapped, checked with errors.Is) when the round ends normally;
// any other error ends the round abnormally. Close aborts an in-flight
// round, used both for normal cleanup and for the mid-round abort C6
// issues when a tool.call frame closes.
type TokenStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Client streams one provider round for a request.
type Client interface {
	Stream(ctx context.Context, req Request) (TokenStream, error)
}
