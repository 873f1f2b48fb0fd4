package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	speechmodel "github.com/interopae/travel-concierge/backend/internal/model/speech"
)

// fakeModel answers every query by echoing a scripted reply in chunks.
type fakeModel struct {
	mu     sync.Mutex
	inputs [][]*schema.Message

	// reply maps the last user message to the chunks streamed back.
	reply func(query string) []string
	// hold makes Stream emit the first chunk and then wait for cancellation
	// when it returns true for a query.
	hold      func(query string) bool
	streamErr error

	// delegate names the tool to call for a query. The reply is built from
	// the tool result once it comes back.
	delegate func(query string) string
	tools    []*schema.ToolInfo
}

func lastUser(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

func (m *fakeModel) record(input []*schema.Message) string {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	return lastUser(input)
}

func toolResult(input []*schema.Message) (string, bool) {
	last := input[len(input)-1]
	if last.Role != schema.Tool {
		return "", false
	}
	return last.Content, true
}

// toolCall returns the delegation message for input, or nil when the model
// should answer directly.
func (m *fakeModel) toolCall(query string, input []*schema.Message) *schema.Message {
	if m.delegate == nil {
		return nil
	}
	if _, ok := toolResult(input); ok {
		return nil
	}
	name := m.delegate(query)
	if name == "" {
		return nil
	}
	args, _ := json.Marshal(map[string]string{"request": query})
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call-" + name,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: string(args)},
	}})
}

func (m *fakeModel) chunks(query string) []string {
	if m.reply != nil {
		return m.reply(query)
	}
	return []string{"re: ", query}
}

func (m *fakeModel) calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.inputs...)
}

func (m *fakeModel) BindTools(tools []*schema.ToolInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return nil
}

func (m *fakeModel) boundTools() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tools))
	for _, info := range m.tools {
		names = append(names, info.Name)
	}
	return names
}

// answer is the reply text for input: the tool result when there is one.
func (m *fakeModel) answer(query string, input []*schema.Message) []string {
	if result, ok := toolResult(input); ok {
		return []string{"From the specialist: ", result}
	}
	return m.chunks(query)
}

func (m *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	query := m.record(input)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	if call := m.toolCall(query, input); call != nil {
		return call, nil
	}
	return schema.AssistantMessage(strings.Join(m.answer(query, input), ""), nil), nil
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	query := m.record(input)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	if call := m.toolCall(query, input); call != nil {
		return schema.StreamReaderFromArray([]*schema.Message{call}), nil
	}

	parts := m.answer(query, input)
	if m.hold == nil || !m.hold(query) {
		msgs := make([]*schema.Message, 0, len(parts))
		for _, p := range parts {
			msgs = append(msgs, schema.AssistantMessage(p, nil))
		}
		return schema.StreamReaderFromArray(msgs), nil
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()
		if len(parts) > 0 {
			sw.Send(schema.AssistantMessage(parts[0], nil), nil)
		}
		<-ctx.Done()
		sw.Send(nil, ctx.Err())
	}()
	return sr, nil
}

type fakeSpeech struct {
	mu         sync.Mutex
	transcript string
	audio      []byte
	heard      [][]byte
	spoken     []string
	asrErr     error

	// asrDelay and ttsDelay stall the calls, honouring cancellation.
	asrDelay time.Duration
	ttsDelay time.Duration
	// transcripts, when set, answers each call in turn before falling back
	// to transcript.
	transcripts []string
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSpeech) Enabled() bool { return true }

func (s *fakeSpeech) Transcribe(ctx context.Context, sessionID string, pcm []byte, _ string) (speechmodel.Transcript, error) {
	if err := wait(ctx, s.asrDelay); err != nil {
		return speechmodel.Transcript{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.heard = append(s.heard, append([]byte(nil), pcm...))
	if s.asrErr != nil {
		return speechmodel.Transcript{}, s.asrErr
	}
	text := s.transcript
	if len(s.transcripts) > 0 {
		text = s.transcripts[0]
		s.transcripts = s.transcripts[1:]
	}
	return speechmodel.Transcript{SessionID: sessionID, Text: text}, nil
}

func (s *fakeSpeech) utterances() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.heard...)
}

func (s *fakeSpeech) Synthesize(ctx context.Context, _ string, text string) ([]byte, error) {
	if err := wait(ctx, s.ttsDelay); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	if len(s.audio) == 0 {
		return nil, errors.New("no audio")
	}
	return s.audio, nil
}

func (s *fakeSpeech) OutputSampleRate() int { return 24000 }
