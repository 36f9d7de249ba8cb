package agent

import (
	"strings"
	"time"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
)

// pumpInput forwards every candidate frame to the model, which does its own
// turn detection, and feeds the local detector used for barge-in and turn
// timing.
func (s *Session) pumpInput() {
	defer s.wg.Done()

	conv := audio.Converter{Target: audio.Speech16k}
	var rf *audio.Reframer
	if s.detector != nil {
		rf = audio.NewReframer(s.frameBytes)
	}
	in := s.participant.Audio()
	var sendErrs int

	for {
		select {
		case <-s.ctx.Done():
			return
		case f, ok := <-in:
			if !ok {
				return
			}
			f = conv.Convert(f)
			if len(f.Data) == 0 {
				continue
			}
			if err := s.handle.SendAudio(f.Data); err != nil {
				if sendErrs == 0 {
					observe.Logger(s.ctx).Warn("agent: send audio failed", "err", err)
				}
				sendErrs++
			}
			if rf == nil {
				continue
			}
			for _, frame := range rf.Write(f.Data) {
				s.detect(frame)
			}
		}
	}
}

func (s *Session) detect(frame []byte) {
	ev, err := s.detector.ProcessFrame(frame)
	if err != nil {
		observe.Logger(s.ctx).Debug("agent: vad frame rejected", "err", err)
		return
	}
	if ev.Type != vad.SpeechStart {
		return
	}
	s.userSpeechAt.Store(time.Now().UnixNano())
	if s.agentSpeaking.Load() && !s.bargedIn.Swap(true) {
		observe.Logger(s.ctx).Debug("agent: candidate barged in")
		if err := s.handle.Interrupt(); err != nil {
			observe.Logger(s.ctx).Debug("agent: interrupt", "err", err)
		}
	}
}

// pumpOutput plays model audio into the room until the model session ends.
// Audio of a turn the candidate talked over is dropped.
func (s *Session) pumpOutput() {
	defer s.wg.Done()
	defer close(s.ended)

	for chunk := range s.handle.Audio() {
		if s.bargedIn.Load() {
			continue
		}
		s.agentSpeaking.Store(true)
		if err := s.local.PublishAudio(s.ctx, audio.Frame{Data: chunk, Format: audio.Speech24k}); err != nil {
			observe.Logger(s.ctx).Debug("agent: publish audio", "err", err)
		}
	}
	if err := s.handle.Err(); err != nil {
		observe.Logger(s.ctx).Warn("agent: model session ended", "err", err)
	}
}

type turnBuffer struct {
	text       strings.Builder
	start, end time.Time
}

func otherRole(role string) string {
	if role == s2s.RoleUser {
		return s2s.RoleAssistant
	}
	return s2s.RoleUser
}

// pumpTranscripts folds transcript fragments into turns. A turn ends on a
// Final fragment or when the other side starts talking.
func (s *Session) pumpTranscripts() {
	defer s.wg.Done()

	for t := range s.handle.Transcripts() {
		if t.Role != s2s.RoleUser && t.Role != s2s.RoleAssistant {
			continue
		}
		if t.Timestamp.IsZero() {
			t.Timestamp = time.Now()
		}
		s.emit(s.fold(t))
	}

	s.mu.Lock()
	var rest []Turn
	for _, role := range []string{s2s.RoleUser, s2s.RoleAssistant} {
		if turn, ok := s.flushLocked(role); ok {
			rest = append(rest, turn)
		}
	}
	s.mu.Unlock()
	s.emit(rest)
}

func (s *Session) fold(t s2s.Transcript) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	var done []Turn
	if t.Text != "" {
		if turn, ok := s.flushLocked(otherRole(t.Role)); ok {
			done = append(done, turn)
		}
		b := s.pending[t.Role]
		if b == nil {
			b = &turnBuffer{start: t.Timestamp}
			if at := s.userSpeechAt.Load(); t.Role == s2s.RoleUser && at != 0 {
				if vt := time.Unix(0, at); vt.Before(t.Timestamp) {
					b.start = vt
				}
			}
			s.pending[t.Role] = b
		}
		b.text.WriteString(t.Text)
		b.end = t.Timestamp
	}
	if t.Final {
		if turn, ok := s.flushLocked(t.Role); ok {
			done = append(done, turn)
		}
		if t.Role == s2s.RoleAssistant {
			s.agentSpeaking.Store(false)
			s.bargedIn.Store(false)
		}
	}
	return done
}

// flushLocked moves the pending text for role into history.
func (s *Session) flushLocked(role string) (Turn, bool) {
	b := s.pending[role]
	delete(s.pending, role)
	if b == nil {
		return Turn{}, false
	}
	text := strings.TrimSpace(b.text.String())
	if text == "" {
		return Turn{}, false
	}
	s.history = append(s.history, s2s.ContextItem{Role: role, Content: text})
	if role == s2s.RoleUser {
		s.userSpeechAt.Store(0)
	}
	return Turn{Role: role, Text: text, Start: b.start, End: b.end}, true
}

func (s *Session) emit(turns []Turn) {
	if s.onTurn == nil {
		return
	}
	for _, t := range turns {
		s.onTurn(t)
	}
}
