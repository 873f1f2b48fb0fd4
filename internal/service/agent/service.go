package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/interopae/travel-concierge/backend/internal/config"
	"github.com/interopae/travel-concierge/backend/internal/model/api"
	"github.com/interopae/travel-concierge/backend/internal/model/chat"
	"github.com/interopae/travel-concierge/backend/internal/model/live"
	"github.com/interopae/travel-concierge/backend/internal/model/profile"
	speechmodel "github.com/interopae/travel-concierge/backend/internal/model/speech"
	"github.com/interopae/travel-concierge/backend/internal/session"
	chatservice "github.com/interopae/travel-concierge/backend/internal/service/chat"
	"github.com/interopae/travel-concierge/backend/internal/service/specialist"
)

var (
	ErrModelUnavailable = errors.New("agent model is not configured")
	ErrAudioUnavailable = errors.New("audio sessions require a configured speech service")
	ErrUnknownModality  = errors.New("unknown response modality")
)

// Speech is the audio backend used by audio sessions.
type Speech interface {
	Enabled() bool
	Transcribe(ctx context.Context, sessionID string, pcm []byte, language string) (speechmodel.Transcript, error)
	Synthesize(ctx context.Context, sessionID, text string) ([]byte, error)
	OutputSampleRate() int
}

// Service runs the travel agent, either as live sessions fed by a queue or
// as single-shot requests.
type Service struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	profile *profile.Profile
	system  string
	chats   *chatservice.Service
	speech  Speech
	cfg     config.BridgeConfig
}

// NewService compiles the agent chain. Each sub-agent of prof becomes a tool
// the model can call, run by a ReAct loop. A nil chatModel yields a service
// whose sessions fail with ErrModelUnavailable, and a nil or disabled speech
// backend disables audio sessions.
func NewService(ctx context.Context, chatModel model.ChatModel, prof *profile.Profile, chats *chatservice.Service, speech Speech, cfg config.BridgeConfig) (*Service, error) {
	if prof == nil {
		prof = profile.Default()
	}
	if chats == nil {
		chats = chatservice.NewService(cfg.AppName)
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = session.DefaultQueueCapacity
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 20
	}

	svc := &Service{
		profile: prof,
		system:  prof.SystemPrompt(),
		chats:   chats,
		speech:  speech,
		cfg:     cfg,
	}
	if chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)

	if len(prof.SubAgents) == 0 {
		chain.AppendChatModel(chatModel)
	} else {
		delegate, err := newDelegateAgent(ctx, chatModel, specialist.Tools(prof.SubAgents, cfg.SpecialistTimeout), cfg.MaxAgentSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to build specialist agent: %w", err)
		}
		graph, opts := delegate.ExportGraph()
		chain.AppendGraph(graph, opts...)
	}

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile agent chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

func newDelegateAgent(ctx context.Context, chatModel model.ChatModel, tools []tool.BaseTool, maxSteps int) (*react.Agent, error) {
	if maxSteps < 1 {
		maxSteps = 12
	}
	cfg := &react.AgentConfig{
		ToolsConfig: compose.ToolsNodeConfig{Tools: tools},
		MaxStep:     maxSteps,
	}
	if tc, ok := chatModel.(model.ToolCallingChatModel); ok {
		cfg.ToolCallingModel = tc
	} else {
		cfg.Model = chatModel
	}
	return react.NewAgent(ctx, cfg)
}

// ModelEnabled reports whether a chat model is wired.
func (s *Service) ModelEnabled() bool {
	return s.chain != nil
}

// AudioEnabled reports whether audio sessions can be started.
func (s *Service) AudioEnabled() bool {
	return s.speech != nil && s.speech.Enabled()
}

// StartSession starts a live agent session for userID. The caller pushes
// requests into the returned queue and reads events from the returned
// stream. Closing the queue ends the session and the stream reports io.EOF.
func (s *Service) StartSession(ctx context.Context, userID string, modality live.Modality) (*schema.StreamReader[*live.Event], *session.Queue, error) {
	if s.chain == nil {
		return nil, nil, ErrModelUnavailable
	}
	switch modality {
	case live.ModalityText:
	case live.ModalityAudio:
		if !s.AudioEnabled() {
			return nil, nil, ErrAudioUnavailable
		}
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
	}

	conversationID := chatservice.NewConversationID()
	if _, _, err := s.chats.GetOrCreate(ctx, userID, conversationID); err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}

	queue := session.NewQueue(s.cfg.QueueCapacity)
	events, sink := schema.Pipe[*live.Event](s.cfg.EventBuffer)

	// Only closing the queue stops the runner.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &runner{
		svc:            s,
		userID:         userID,
		conversationID: conversationID,
		modality:       modality,
		queue:          queue,
		events:         sink,
	}
	go func() {
		defer cancel()
		r.run(runCtx)
	}()

	log.Printf("[agent] session started: user=%s conversation=%s modality=%s", userID, conversationID, modality)
	return events, queue, nil
}

// Respond runs one request to completion against the user's saved
// conversation and returns the concatenated reply.
func (s *Service) Respond(ctx context.Context, userID string, req api.QueryRequest) (*api.Reply, error) {
	if s.chain == nil {
		return nil, ErrModelUnavailable
	}

	query, supplied, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	conv, _, err := s.chats.GetOrCreate(ctx, userID, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	// A client that sends its own history owns the context of the turn.
	history := promptMessages(supplied)
	if len(history) == 0 {
		stored, err := s.chats.LoadTranscript(ctx, userID, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
		history = s.historyMessages(stored)
	}
	response, err := s.chain.Invoke(ctx, s.chainInput(history, query))
	if err != nil {
		return nil, fmt.Errorf("failed to run agent chain: %w", err)
	}

	text := ""
	if response != nil {
		text = strings.TrimSpace(response.Content)
	}

	s.record(ctx, userID, conv.ID, chat.SenderUser, query)
	if text != "" {
		s.record(ctx, userID, conv.ID, chat.SenderAssistant, text)
	}

	log.Printf("[agent] single-shot reply: user=%s conversation=%s length=%d", userID, conv.ID, len(text))
	return api.TextReply(text), nil
}

func (s *Service) chainInput(history []*schema.Message, query string) map[string]any {
	return map[string]any{
		"system":  s.system,
		"history": history,
		"query":   query,
	}
}

func (s *Service) record(ctx context.Context, userID, conversationID, sender, content string) {
	err := s.chats.SaveMessage(ctx, userID, chat.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
	})
	if err != nil {
		log.Printf("[agent] failed to save %s message for conversation %s: %v", sender, conversationID, err)
	}
}

func (s *Service) historyMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	start := max(len(messages)-s.cfg.HistoryLimit, 0)
	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}

func promptMessages(prompts []api.Prompt) []*schema.Message {
	out := make([]*schema.Message, 0, len(prompts))
	for _, p := range prompts {
		text := strings.TrimSpace(p.Message)
		if text == "" {
			continue
		}
		switch strings.ToLower(p.Role) {
		case "user":
			out = append(out, schema.UserMessage(text))
		case "model", "assistant", "agent":
			out = append(out, schema.AssistantMessage(text, nil))
		case "system":
			out = append(out, schema.SystemMessage(text))
		}
	}
	return out
}
