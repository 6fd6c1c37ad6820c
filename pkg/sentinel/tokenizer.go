// Package sentinel demultiplexes a free-form token stream into an ordered
// sequence of frame lifecycle events, recognizing sentinel-bracketed frames
// (⟦BEGIN_OBJECT...⟧, ⟦BEGIN_TOOL_CALL...⟧, ⟦BEGIN_RESULT...⟧ and their
// END_ counterparts) while staying aware of JSON string literals so that
// bracket characters inside a frame body never get mistaken for sentinels.
//
// The tokenizer is push-driven: Feed appends an arbitrary chunk of bytes
// and returns the events that chunk made determinable. It never backtracks
// across an event it has already emitted, and it is safe to call Feed with
// chunks split at any byte boundary, including mid-sentinel or mid-string.
package sentinel

import (
	"bytes"
	"regexp"
)

// Kind identifies the three frame shapes the grammar defines.
type Kind string

const (
	KindObject Kind = "object"
	KindTool   Kind = "tool"
	KindResult Kind = "result"
)

// EventType names the lifecycle events the tokenizer emits.
type EventType string

const (
	EventTextDelta   EventType = "text.delta"
	EventJSONBegin   EventType = "json.begin"
	EventJSONDelta   EventType = "json.delta"
	EventJSONEnd     EventType = "json.end"
	EventToolCall    EventType = "tool.call"
	EventResultBegin EventType = "result.begin"
	EventResultDelta EventType = "result.delta"
	EventResultEnd   EventType = "result.end"
)

// Event is one item in the totally ordered event sequence produced by the
// tokenizer. Only the fields relevant to Type are populated.
type Event struct {
	Type   EventType
	ID     string
	Schema string // set for json.begin/result.begin
	Name   string // set for tool.call (the tool name)
	Chunk  string // set for text.delta / json.delta / result.delta
	Length int    // set for json.end / result.end
	Args   []byte // set for tool.call; nil if the body failed to parse as JSON
}

const (
	bracketOpen  = "⟦"
	bracketClose = "⟧"
)

var (
	reBeginObject = regexp.MustCompile(`^BEGIN_OBJECT id=(\S+) schema=(\S+)$`)
	reBeginTool   = regexp.MustCompile(`^BEGIN_TOOL_CALL id=(\S+) name=(\S+)$`)
	reBeginResult = regexp.MustCompile(`^BEGIN_RESULT id=(\S+) schema=(\S+)$`)
	reEnd         = regexp.MustCompile(`^END_(OBJECT|TOOL_CALL|RESULT)$`)
)

func endHeaderFor(k Kind) string {
	switch k {
	case KindObject:
		return "END_OBJECT"
	case KindTool:
		return "END_TOOL_CALL"
	case KindResult:
		return "END_RESULT"
	}
	return ""
}

// frameState tracks the single currently-open frame and the JSON-string
// scan state for its body (carried across Feed calls).
type frameState struct {
	kind          Kind
	id            string
	schemaOrName  string
	body          bytes.Buffer
	inString      bool
	stringEscaped bool
}

// Tokenizer is a single-session, single-goroutine frame demultiplexer. It
// is not safe for concurrent use; a session owns exactly one Tokenizer.
type Tokenizer struct {
	buf   []byte
	frame *frameState
}

// New returns a Tokenizer in the Outside state.
func New() *Tokenizer {
	return &Tokenizer{}
}

// Feed appends chunk to the internal buffer and returns every event the
// new bytes made determinable. It is valid to call Feed with an empty or
// nil chunk to flush progress after external state changes (there is
// none), though in practice callers only invoke it with new text.
func (t *Tokenizer) Feed(chunk []byte) []Event {
	if len(chunk) > 0 {
		t.buf = append(t.buf, chunk...)
	}
	var events []Event
	for {
		var (
			step []Event
			more bool
		)
		if t.frame == nil {
			step, more = t.stepOutside()
		} else {
			step, more = t.stepInside()
		}
		events = append(events, step...)
		if !more {
			break
		}
	}
	return events
}

func emitText(chunk string) []Event {
	if chunk == "" {
		return nil
	}
	return []Event{{Type: EventTextDelta, Chunk: chunk}}
}

// stepOutside processes buffered bytes while no frame is open. It returns
// the events produced and whether the caller should loop again (true when
// a frame was opened, or when a stray/malformed header was fully consumed
// and more buffer may still follow).
func (t *Tokenizer) stepOutside() ([]Event, bool) {
	data := t.buf
	idx := bytes.Index(data, []byte(bracketOpen))
	if idx == -1 {
		hold := partialBracketSuffixLen(data)
		t.buf = data[len(data)-hold:]
		return emitText(string(data[:len(data)-hold])), false
	}

	closeRel := bytes.Index(data[idx:], []byte(bracketClose))
	if closeRel == -1 {
		// Header incomplete: emit the leading text, retain from the bracket.
		ev := emitText(string(data[:idx]))
		t.buf = data[idx:]
		return ev, false
	}
	closeIdx := idx + closeRel
	afterIdx := closeIdx + len(bracketClose)
	header := string(data[idx+len(bracketOpen) : closeIdx])

	var events []Event
	events = append(events, emitText(string(data[:idx]))...)

	switch {
	case reBeginObject.MatchString(header):
		m := reBeginObject.FindStringSubmatch(header)
		t.frame = &frameState{kind: KindObject, id: m[1], schemaOrName: m[2]}
		events = append(events, Event{Type: EventJSONBegin, ID: m[1], Schema: m[2]})
	case reBeginTool.MatchString(header):
		m := reBeginTool.FindStringSubmatch(header)
		t.frame = &frameState{kind: KindTool, id: m[1], schemaOrName: m[2]}
		// No event on open for Tool frames.
	case reBeginResult.MatchString(header):
		m := reBeginResult.FindStringSubmatch(header)
		t.frame = &frameState{kind: KindResult, id: m[1], schemaOrName: m[2]}
		events = append(events, Event{Type: EventResultBegin, ID: m[1], Schema: m[2]})
	default:
		// Stray END_* with no open frame, or an unrecognized header shape:
		// both are ignored as plain text, brackets and all.
		events = append(events, emitText(string(data[idx:afterIdx]))...)
	}

	t.buf = data[afterIdx:]
	return events, true
}

// stepInside processes buffered bytes while a frame is open, scanning for
// the matching END_* sentinel outside JSON string literals.
func (t *Tokenizer) stepInside() ([]Event, bool) {
	f := t.frame
	data := t.buf

	idx, inString, escaped, found := scanForBracket(data, f.inString, f.stringEscaped)
	if !found {
		f.inString, f.stringEscaped = inString, escaped
		hold := 0
		if !inString {
			// A trailing partial match of bracketOpen can't be told apart
			// from ordinary body bytes yet; the held-back bytes are
			// neither '"' nor '\\', so scanning them above left
			// inString/escaped unchanged and correct for the next Feed.
			hold = partialBracketSuffixLen(data)
		}
		body := data[:len(data)-hold]
		f.body.Write(body)
		t.buf = data[len(data)-hold:]
		return deltaEventsFor(f, string(body)), false
	}

	var events []Event
	if idx > 0 {
		f.body.Write(data[:idx])
		events = append(events, deltaEventsFor(f, string(data[:idx]))...)
	}

	closeRel := bytes.Index(data[idx:], []byte(bracketClose))
	if closeRel == -1 {
		t.buf = data[idx:]
		return events, false
	}
	closeIdx := idx + closeRel
	afterIdx := closeIdx + len(bracketClose)
	header := string(data[idx+len(bracketOpen) : closeIdx])

	if header == endHeaderFor(f.kind) {
		events = append(events, t.closeFrame()...)
		t.buf = data[afterIdx:]
		return events, true
	}

	// Anything else bracketed (a mismatched END_, a nested BEGIN_, or junk)
	// is not our closer: treat the whole bracketed span as body content.
	span := data[idx:afterIdx]
	f.body.Write(span)
	events = append(events, deltaEventsFor(f, string(span))...)
	t.buf = data[afterIdx:]
	return events, true
}

func deltaEventsFor(f *frameState, chunk string) []Event {
	if chunk == "" {
		return nil
	}
	switch f.kind {
	case KindObject:
		return []Event{{Type: EventJSONDelta, ID: f.id, Chunk: chunk}}
	case KindResult:
		return []Event{{Type: EventResultDelta, ID: f.id, Chunk: chunk}}
	default:
		// Tool frames buffer silently; no intermediate deltas.
		return nil
	}
}

func (t *Tokenizer) closeFrame() []Event {
	f := t.frame
	t.frame = nil
	switch f.kind {
	case KindObject:
		return []Event{{Type: EventJSONEnd, ID: f.id, Length: f.body.Len()}}
	case KindResult:
		return []Event{{Type: EventResultEnd, ID: f.id, Length: f.body.Len()}}
	case KindTool:
		raw := f.body.Bytes()
		if !isValidJSON(raw) {
			return []Event{{Type: EventToolCall, ID: f.id, Name: f.schemaOrName, Args: nil}}
		}
		return []Event{{Type: EventToolCall, ID: f.id, Name: f.schemaOrName, Args: append([]byte(nil), raw...)}}
	}
	return nil
}

// scanForBracket scans data for the first unescaped bracketOpen sequence
// found outside a JSON string literal, carrying and returning the
// string/escape state across the scan. When found is false, the returned
// state reflects the whole of data having been scanned (no bracket found
// within it). Only '"', '\\' and the 3-byte bracket sequences need
// comparing, so the scan steps one byte at a time rather than decoding
// full runes.
func scanForBracket(data []byte, inString, escaped bool) (idx int, outString, outEscaped bool, found bool) {
	i := 0
	for i < len(data) {
		b := data[i]
		if !inString {
			if matchesAt(data, i, bracketOpen) {
				return i, inString, escaped, true
			}
			if b == '"' {
				inString = true
			}
		} else {
			if escaped {
				escaped = false
			} else if b == '\\' {
				escaped = true
			} else if b == '"' {
				inString = false
			}
		}
		i++
	}
	return len(data), inString, escaped, false
}

func matchesAt(data []byte, i int, s string) bool {
	return i+len(s) <= len(data) && string(data[i:i+len(s)]) == s
}

// partialBracketSuffixLen reports how many trailing bytes of data are a
// proper, non-empty prefix of bracketOpen (1 or 2 of its 3 UTF-8 bytes).
// Those bytes must be held back rather than flushed as text/body content:
// the next Feed call may supply the rest of the bracket, and once a full
// bracketOpen appears, scanForBracket/bytes.Index would no longer be able
// to find it split across two already-emitted chunks.
func partialBracketSuffixLen(data []byte) int {
	open := []byte(bracketOpen)
	maxLen := len(open) - 1
	if maxLen > len(data) {
		maxLen = len(data)
	}
	for n := maxLen; n > 0; n-- {
		if bytes.HasSuffix(data, open[:n]) {
			return n
		}
	}
	return 0
}

func isValidJSON(b []byte) bool {
	return jsonValid(b)
}
