package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/interopae/travel-concierge/backend/internal/model/chat"
	"github.com/interopae/travel-concierge/backend/internal/model/live"
	"github.com/interopae/travel-concierge/backend/internal/session"
)

// outcome is how a turn ended.
type outcome int

const (
	// turnFinished covers completed and failed turns.
	turnFinished outcome = iota
	turnCancelled
	readerClosed
)

// turn is one in-flight model response.
type turn struct {
	cancel context.CancelFunc
	done   chan outcome
	// sent is set once the turn has written content to the stream.
	sent atomic.Bool
}

// transcription is one in-flight speech recognition call.
type transcription struct {
	cancel context.CancelFunc
	done   chan transcriptResult
	bytes  int
}

type transcriptResult struct {
	text string
	err  error
}

// runner drives one live session: it consumes the queue in order and writes
// agent events to the session's stream.
//
// Audio is buffered into utterances that are transcribed one at a time.
// Incoming audio never cancels anything; only a non-empty transcript or a
// text message cuts off the reply in progress.
type runner struct {
	svc            *Service
	userID         string
	conversationID string
	modality       live.Modality
	queue          *session.Queue
	events         *schema.StreamWriter[*live.Event]

	audio     []byte
	utterance [][]byte
}

func (r *runner) run(ctx context.Context) {
	defer func() {
		r.svc.chats.Delete(context.WithoutCancel(ctx), r.userID, r.conversationID)
		r.events.Close()
		log.Printf("[agent] session closed: user=%s conversation=%s", r.userID, r.conversationID)
	}()

	var (
		reply *turn
		asr   *transcription
		idle  *time.Timer
		idleC <-chan time.Time
	)
	defer func() {
		if idle != nil {
			idle.Stop()
		}
	}()

	// interrupt stops the running reply. The client only hears about it when
	// the reply had already produced output. It returns false once the
	// reader is gone.
	interrupt := func() bool {
		if reply == nil {
			return true
		}
		t := reply
		reply = nil
		t.cancel()
		switch <-t.done {
		case readerClosed:
			return false
		case turnCancelled:
			if t.sent.Load() {
				return !r.emit(&live.Event{Interrupted: true})
			}
		}
		return true
	}

	answer := func(query string) bool {
		if !interrupt() {
			return false
		}
		reply = r.startReply(ctx, query)
		return true
	}

	nextTranscription := func() {
		if asr != nil || len(r.utterance) == 0 {
			return
		}
		pcm := r.utterance[0]
		r.utterance = r.utterance[1:]
		asr = r.startTranscription(ctx, pcm)
	}

	flush := func() {
		idleC = nil
		if len(r.audio) == 0 {
			return
		}
		r.utterance = append(r.utterance, r.audio)
		r.audio = nil
		nextTranscription()
	}

	for {
		var (
			replyDone chan outcome
			asrDone   chan transcriptResult
		)
		if reply != nil {
			replyDone = reply.done
		}
		if asr != nil {
			asrDone = asr.done
		}

		select {
		case <-r.queue.Done():
			if asr != nil {
				asr.cancel()
				<-asr.done
			}
			if reply != nil {
				reply.cancel()
				<-reply.done
			}
			return

		case result := <-replyDone:
			reply = nil
			if result == readerClosed {
				return
			}

		case res := <-asrDone:
			heard := asr.bytes
			asr = nil
			switch {
			case res.err != nil:
				log.Printf("[asr] transcription failed for user %s: %v", r.userID, res.err)
			case strings.TrimSpace(res.text) == "":
				log.Printf("[asr] no speech in %d bytes for user %s", heard, r.userID)
			default:
				if !answer(strings.TrimSpace(res.text)) {
					return
				}
			}
			nextTranscription()

		case <-idleC:
			flush()

		case req := <-r.queue.Requests():
			switch {
			case req.Content != nil:
				text := strings.TrimSpace(req.Content.Text())
				if text == "" {
					log.Printf("[agent] ignoring empty content for user %s", r.userID)
					continue
				}
				if len(r.audio) > 0 {
					log.Printf("[agent] discarding %d bytes of buffered audio superseded by text", len(r.audio))
					r.audio = nil
					idleC = nil
				}
				if !answer(text) {
					return
				}

			case req.Blob != nil:
				if !r.acceptAudio(req.Blob) {
					continue
				}
				if limit := r.svc.cfg.AudioMaxBytes; limit > 0 && len(r.audio) >= limit {
					flush()
					continue
				}
				if idle == nil {
					idle = time.NewTimer(r.idleFlush())
				} else {
					idle.Reset(r.idleFlush())
				}
				idleC = idle.C
			}
		}
	}
}

func (r *runner) idleFlush() time.Duration {
	if r.svc.cfg.AudioIdleFlush > 0 {
		return r.svc.cfg.AudioIdleFlush
	}
	return 800 * time.Millisecond
}

func (r *runner) acceptAudio(blob *live.Blob) bool {
	if !strings.HasPrefix(blob.MIMEType, live.MIMEAudioPCM) {
		log.Printf("[agent] dropping blob with unsupported mime type %q", blob.MIMEType)
		return false
	}
	if !r.svc.AudioEnabled() {
		log.Printf("[agent] dropping %d bytes of audio: speech is not configured", len(blob.Data))
		return false
	}
	r.audio = append(r.audio, blob.Data...)
	return true
}

func (r *runner) startTranscription(ctx context.Context, pcm []byte) *transcription {
	ctx, cancel := context.WithCancel(ctx)
	job := &transcription{cancel: cancel, done: make(chan transcriptResult, 1), bytes: len(pcm)}

	go func() {
		defer cancel()
		text, err := r.transcribe(ctx, pcm)
		job.done <- transcriptResult{text: text, err: err}
	}()
	return job
}

func (r *runner) startReply(ctx context.Context, query string) *turn {
	ctx, cancel := context.WithCancel(ctx)
	t := &turn{cancel: cancel, done: make(chan outcome, 1)}

	go func() {
		defer cancel()
		t.done <- r.respond(ctx, t, query)
	}()
	return t
}

// respond runs one turn.
func (r *runner) respond(ctx context.Context, t *turn, query string) outcome {
	invocationID := "e-" + uuid.NewString()
	log.Printf("[CLIENT --> AGENT] user=%s: %s", r.userID, query)

	stored, err := r.svc.chats.LoadTranscript(ctx, r.userID, r.conversationID)
	if err != nil {
		return r.fail(fmt.Errorf("load transcript: %w", err))
	}
	r.svc.record(ctx, r.userID, r.conversationID, chat.SenderUser, query)

	stream, err := r.svc.chain.Stream(ctx, r.svc.chainInput(r.svc.historyMessages(stored), query))
	if err != nil {
		if ctx.Err() != nil {
			return turnCancelled
		}
		return r.fail(fmt.Errorf("failed to stream agent output: %w", err))
	}
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return turnCancelled
			}
			return r.fail(fmt.Errorf("agent stream: %w", err))
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)

		if chunk.Content == "" {
			continue
		}
		if r.emitTurn(t, r.textEvent(invocationID, chunk.Content, true)) {
			return readerClosed
		}
	}
	if ctx.Err() != nil {
		return turnCancelled
	}

	var text string
	if len(chunks) > 0 {
		full, err := schema.ConcatMessages(chunks)
		if err != nil {
			return r.fail(fmt.Errorf("concat agent output: %w", err))
		}
		text = strings.TrimSpace(full.Content)
	}

	if text != "" {
		r.svc.record(ctx, r.userID, r.conversationID, chat.SenderAssistant, text)
		// The final snapshot repeats the partials; clients skip it.
		if r.emitTurn(t, r.textEvent(invocationID, text, false)) {
			return readerClosed
		}
	}

	if r.modality == live.ModalityAudio && text != "" {
		if r.speak(ctx, t, invocationID, text) {
			return readerClosed
		}
		if ctx.Err() != nil {
			return turnCancelled
		}
	}

	if r.emit(&live.Event{InvocationID: invocationID, TurnComplete: true}) {
		return readerClosed
	}
	return turnFinished
}

func (r *runner) transcribe(ctx context.Context, pcm []byte) (string, error) {
	transcript, err := r.svc.speech.Transcribe(ctx, r.conversationID, pcm, "")
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	log.Printf("[asr] user=%s bytes=%d transcript=%q", r.userID, len(pcm), transcript.Text)
	return transcript.Text, nil
}

// speak synthesizes text and emits it as one-second PCM fragments.
func (r *runner) speak(ctx context.Context, t *turn, invocationID, text string) bool {
	pcm, err := r.svc.speech.Synthesize(ctx, r.conversationID, text)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[tts] synthesis failed for user %s: %v", r.userID, err)
		}
		return false
	}

	rate := r.svc.speech.OutputSampleRate()
	if rate <= 0 {
		rate = 24000
	}
	mimeType := fmt.Sprintf("%s;rate=%d", live.MIMEAudioPCM, rate)
	chunk := rate * 2

	for start := 0; start < len(pcm); start += chunk {
		if ctx.Err() != nil {
			return false
		}
		end := min(start+chunk, len(pcm))
		ev := r.newEvent(invocationID)
		ev.Content = &live.Content{
			Role:  live.RoleModel,
			Parts: []live.Part{{InlineData: &live.Blob{MIMEType: mimeType, Data: pcm[start:end]}}},
		}
		ev.Partial = end < len(pcm)
		if r.emitTurn(t, ev) {
			return true
		}
	}
	return false
}

func (r *runner) textEvent(invocationID, text string, partial bool) *live.Event {
	ev := r.newEvent(invocationID)
	ev.Content = live.NewTextContent(live.RoleModel, text)
	ev.Partial = partial
	return ev
}

func (r *runner) newEvent(invocationID string) *live.Event {
	return &live.Event{
		ID:           uuid.NewString(),
		Author:       r.svc.profile.Name,
		InvocationID: invocationID,
		Timestamp:    time.Now().UTC(),
	}
}

// emitTurn writes content produced by t and marks t as having spoken.
func (r *runner) emitTurn(t *turn, ev *live.Event) bool {
	t.sent.Store(true)
	return r.emit(ev)
}

// emit writes ev to the stream and reports whether the reader is gone.
func (r *runner) emit(ev *live.Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
		ev.Author = r.svc.profile.Name
		ev.Timestamp = time.Now().UTC()
	}
	return r.events.Send(ev, nil)
}

// fail reports err on the stream. The turn ends but the session keeps running.
func (r *runner) fail(err error) outcome {
	log.Printf("[agent] turn failed for user %s: %v", r.userID, err)
	if r.events.Send(nil, err) {
		return readerClosed
	}
	return turnFinished
}
