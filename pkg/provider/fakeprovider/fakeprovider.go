// Package fakeprovider is a deterministic provider.Client test double,
// the same role the teacher's pkg/testutil.MockLanguageModel plays for
// its own tests: canned, inspectable stream chunks instead of a real
// network call. It is test scaffolding (not the excluded "demo CLI" or
// "sample tools"), and also the provider cmd/gateway runs against, since
// no production provider.Client ships in this repo. It drives the E2E
// scenarios spec.md §8 names
// by keying its script off a `mode=<name>` marker the session controller
// threads through as a leading system message.
package fakeprovider

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/frameflow/frameflow/pkg/provider"
)

// Mode names match spec.md §8's literal testKey/mode values.
const (
	ModeHappy            = ""
	ModeRetry            = "retry_test"
	ModeTimeout          = "timeout_test"
	ModeBackpressure     = "backpressure_test"
	ModeRepair           = "repair_test"
	ModeSilence          = "silence_test"
	ModeProviderFallback = "provider_fallback_test"
)

// ModeOf extracts the mode= marker the session controller prepends to the
// message list, defaulting to ModeHappy.
func ModeOf(messages []provider.Message) string {
	for _, m := range messages {
		if m.Role == "system" && strings.HasPrefix(m.Content, "mode=") {
			return strings.TrimPrefix(m.Content, "mode=")
		}
	}
	return ModeHappy
}

// toolResultCount counts how many "TOOL_RESULT id=" records already appear in
// the message list, which is how the session controller records a
// completed tool round (spec.md §4.6). Each script below branches on
// this count to decide what the next round should emit.
func toolResultCount(messages []provider.Message) int {
	n := 0
	for _, m := range messages {
		n += strings.Count(m.Content, "TOOL_RESULT id=")
	}
	return n
}

// Client streams the canned script for req's mode.
type Client struct{}

// New returns a ready-to-use fake Client.
func New() *Client { return &Client{} }

func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.TokenStream, error) {
	mode := ModeOf(req.Messages)
	round := toolResultCount(req.Messages)

	switch mode {
	case ModeRetry:
		return scriptFor(retryScript(round)), nil
	case ModeTimeout:
		return scriptFor(timeoutScript(round)), nil
	case ModeBackpressure:
		return scriptFor(backpressureScript()), nil
	case ModeRepair:
		return scriptFor(repairScript()), nil
	case ModeSilence:
		return &blockingStream{}, nil
	case ModeProviderFallback:
		return scriptFor(nil), nil
	default:
		return scriptFor(happyScript(round)), nil
	}
}

func happyScript(round int) []string {
	switch round {
	case 0:
		return []string{
			`⟦BEGIN_OBJECT id=o1 schema=Action⟧`,
			`{"type":"search","query":"pizza"}`,
			`⟦END_OBJECT⟧`,
			`⟦BEGIN_TOOL_CALL id=t1 name=places.search⟧`,
			`{"q":"pizza"}`,
			`⟦END_TOOL_CALL⟧`,
		}
	case 1:
		return []string{
			`⟦BEGIN_TOOL_CALL id=t2 name=bookings.create⟧`,
			`{"venue":"Luigi's","time":"19:00"}`,
			`⟦END_TOOL_CALL⟧`,
		}
	default:
		return []string{
			`⟦BEGIN_RESULT id=r1 schema=AssistantReply⟧`,
			`{"answer":"Booked at 7pm","citations":["places.search","bookings.create"]}`,
			`⟦END_RESULT⟧`,
		}
	}
}

func retryScript(round int) []string {
	if round == 0 {
		return []string{
			`⟦BEGIN_TOOL_CALL id=t1 name=flaky.op⟧`,
			`{"key":"rt-1"}`,
			`⟦END_TOOL_CALL⟧`,
		}
	}
	return []string{
		`⟦BEGIN_RESULT id=r1 schema=AssistantReply⟧`,
		`{"answer":"Retry attempts 2","citations":[]}`,
		`⟦END_RESULT⟧`,
	}
}

func timeoutScript(round int) []string {
	if round == 0 {
		return []string{
			`⟦BEGIN_TOOL_CALL id=t1 name=slow.op⟧`,
			`{}`,
			`⟦END_TOOL_CALL⟧`,
		}
	}
	return []string{
		`⟦BEGIN_RESULT id=r1 schema=AssistantReply⟧`,
		`{"answer":"Operation timed out","citations":[]}`,
		`⟦END_RESULT⟧`,
	}
}

func backpressureScript() []string {
	chunks := []string{`⟦BEGIN_RESULT id=r1 schema=AssistantReply⟧`, `{"answer":"`}
	for i := 0; i < 12; i++ {
		chunks = append(chunks, "chunk-of-a-long-answer ")
	}
	chunks = append(chunks, `","citations":[]}`, `⟦END_RESULT⟧`)
	return chunks
}

func repairScript() []string {
	return []string{
		`⟦BEGIN_RESULT id=r1 schema=AssistantReply⟧`,
		`{"citations":[]}`, // missing required "answer" -> validation fails
		`⟦END_RESULT⟧`,
	}
}

// stringStream replays a fixed list of text chunks, one per Next call,
// then io.EOF — the same shape as testutil.MockTextStream.
type stringStream struct {
	mu     sync.Mutex
	chunks []string
	idx    int
	closed bool
}

func scriptFor(chunks []string) *stringStream {
	return &stringStream{chunks: chunks}
}

func (s *stringStream) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", io.EOF
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.idx >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *stringStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// blockingStream never produces a chunk until its context is canceled,
// modeling a provider that has gone silent mid-round (spec.md §8's
// silence_test: the frame-silence timer, not the provider, must end the
// session).
type blockingStream struct{}

func (b *blockingStream) Next(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", errors.New("provider stream canceled: " + ctx.Err().Error())
}

func (b *blockingStream) Close() error { return nil }

var _ provider.TokenStream = (*stringStream)(nil)
var _ provider.TokenStream = (*blockingStream)(nil)
var _ provider.Client = (*Client)(nil)
