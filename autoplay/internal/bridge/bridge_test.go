package bridge

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/nextplay/autoplay/handshake"
)

func TestDecodeEvent_Mutation(t *testing.T) {
	ev, err := decodeEvent(`{"kind":"mutation"}`)
	require.NoError(t, err)
	assert.Equal(t, KindMutation, ev.Kind)
}

func TestDecodeEvent_TextMessage(t *testing.T) {
	ev, err := decodeEvent(`{"kind":"message","origin":"https://www.youtube.com","source":"w1","text":"{\"event\":\"onReady\"}"}`)
	require.NoError(t, err)
	require.Equal(t, KindMessage, ev.Kind)
	assert.Equal(t, "https://www.youtube.com", ev.Message.Origin)
	assert.Equal(t, "w1", ev.Message.Source)
	assert.Equal(t, `{"event":"onReady"}`, ev.Message.Data)
	assert.Equal(t, handshake.Readiness, handshake.Normalize(ev.Message.Data).Kind)
}

func TestDecodeEvent_StructuredMessage(t *testing.T) {
	ev, err := decodeEvent(`{"kind":"message","origin":"https://www.youtube.com","source":"","data":{"event":"infoDelivery","info":{"t":1}}}`)
	require.NoError(t, err)
	m, ok := ev.Message.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "infoDelivery", m["event"])
	assert.Empty(t, ev.Message.Source)
}

func TestDecodeEvent_NullData(t *testing.T) {
	ev, err := decodeEvent(`{"kind":"message","origin":"x","source":"","data":null}`)
	require.NoError(t, err)
	assert.Nil(t, ev.Message.Data)
	assert.Equal(t, handshake.Malformed, handshake.Normalize(ev.Message.Data).Kind)
}

func TestDecodeEvent_Errors(t *testing.T) {
	_, err := decodeEvent(`not json`)
	assert.Error(t, err)
	_, err = decodeEvent(`{"kind":"resize"}`)
	assert.Error(t, err)
}

func TestDispatch_RoutesToHandlers(t *testing.T) {
	b := &Bridge{logger: discardLogger()}
	b.url.Store("")
	var mutations int
	var got []handshake.Message
	b.Listen(Handlers{
		OnMutation: func() { mutations++ },
		OnMessage:  func(m handshake.Message) { got = append(got, m) },
	})

	b.dispatch(`{"kind":"mutation"}`)
	b.dispatch(`{"kind":"message","origin":"o","source":"w2","text":"hi"}`)
	b.dispatch(`garbage`)

	assert.Equal(t, 1, mutations)
	require.Len(t, got, 1)
	assert.Equal(t, "w2", got[0].Source)
}

func TestAgentScript(t *testing.T) {
	assert.Contains(t, agentJS, Binding)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(agentJS), "(() => {"))
	// Labels come from rendered text, so hidden spans and script bodies
	// inside a control never leak into the match.
	assert.Contains(t, agentJS, "el.innerText ?? el.textContent")
	assert.NotContains(t, agentJS, "el.textContent ||")
	assert.Contains(t, agentJS, "MAX_TEXT")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
