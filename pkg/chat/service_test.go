package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/config"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/llm"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

type fakeStreamer struct {
	chunks    []string
	err       error
	lastFirst llm.Message
}

func (f *fakeStreamer) StreamText(_ context.Context, req llm.Request) (llm.Stream, error) {
	if len(req.Messages) > 0 {
		f.lastFirst = req.Messages[0]
	}
	if f.err != nil {
		return nil, f.err
	}
	return &chunkStream{chunks: f.chunks}, nil
}

type chunkStream struct {
	chunks []string
	pos    int
	cur    string
}

func (s *chunkStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.cur = s.chunks[s.pos]
	s.pos++
	return true
}

func (s *chunkStream) Current() string { return s.cur }
func (s *chunkStream) Err() error      { return nil }
func (s *chunkStream) Close() error    { return nil }

type recordingRescorer struct {
	calls []string
}

func (r *recordingRescorer) RescoreAsync(conversationID string) {
	r.calls = append(r.calls, conversationID)
}

func setup(t *testing.T, priorTurns int) (*Service, *fakeStreamer, *recordingRescorer, *store.Store, string) {
	t.Helper()
	st, err := store.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	lead, err := st.CreateLead(context.Background(), "lead@example.com", "Lee", "")
	require.NoError(t, err)
	conv, err := st.CreateConversation(context.Background(), lead.ID)
	require.NoError(t, err)

	for i := 0; i < priorTurns/2; i++ {
		require.NoError(t, st.AppendMessage(context.Background(), conv.ID, store.RoleUser, fmt.Sprintf("q%d", i)))
		require.NoError(t, st.AppendMessage(context.Background(), conv.ID, store.RoleAssistant, fmt.Sprintf("a%d", i)))
	}

	streamer := &fakeStreamer{chunks: []string{"Hello", ", ", "lead!"}}
	rescorer := &recordingRescorer{}
	svc := NewService(streamer, rescorer, st, config.ChatConfig{SystemPrompt: "You are a helpful sales assistant."})
	return svc, streamer, rescorer, st, conv.ID
}

func TestRespondStreamsAndPersistsTurns(t *testing.T) {
	svc, streamer, _, st, convID := setup(t, 0)

	var streamed []string
	reply, err := svc.Respond(context.Background(), convID, "hi there", func(chunk string) error {
		streamed = append(streamed, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, lead!", reply)
	assert.Equal(t, []string{"Hello", ", ", "lead!"}, streamed)

	turns, err := st.ListTurns(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, "hi there", turns[0].Content)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Hello, lead!", turns[1].Content)

	// The system prompt leads the message list sent upstream.
	assert.Equal(t, llm.RoleSystem, streamer.lastFirst.Role)
}

func TestRespondFallbackOnExhaustion(t *testing.T) {
	svc, streamer, _, st, convID := setup(t, 0)
	streamer.err = &llm.AllProvidersExhaustedError{Provider: "p3", Err: fmt.Errorf("quota exceeded")}

	var streamed string
	reply, err := svc.Respond(context.Background(), convID, "hi", func(chunk string) error {
		streamed += chunk
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply)
	assert.Equal(t, FallbackReply, streamed)

	// The fallback is persisted as the assistant turn so the transcript
	// matches what the user saw.
	turns, err := st.ListTurns(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, FallbackReply, turns[1].Content)
}

func TestRespondTriggersRescoreAtCadence(t *testing.T) {
	// 4 prior turns + user + assistant = 6 → cadence hit.
	svc, _, rescorer, _, convID := setup(t, 4)

	_, err := svc.Respond(context.Background(), convID, "hi", func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{convID}, rescorer.calls)
}

func TestRespondSkipsRescoreOffCadence(t *testing.T) {
	// 2 prior turns + user + assistant = 4 → not divisible by 3.
	svc, _, rescorer, _, convID := setup(t, 2)

	_, err := svc.Respond(context.Background(), convID, "hi", func(string) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, rescorer.calls)
}

func TestRespondSinkFailureKeepsPartialReply(t *testing.T) {
	svc, _, _, st, convID := setup(t, 0)

	sent := 0
	_, err := svc.Respond(context.Background(), convID, "hi", func(string) error {
		sent++
		if sent == 2 {
			return fmt.Errorf("client disconnected")
		}
		return nil
	})
	require.Error(t, err)

	turns, terr := st.ListTurns(context.Background(), convID)
	require.NoError(t, terr)
	require.Len(t, turns, 2)
	assert.Equal(t, "Hello, ", turns[1].Content, "partial delivered reply is persisted")
}
