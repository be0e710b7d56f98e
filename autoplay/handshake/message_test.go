package handshake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		data any
		want Kind
	}{
		{"onReady text", `{"event":"onReady","id":1}`, Readiness},
		{"infoDelivery text", `{"event":"infoDelivery","info":{"currentTime":0}}`, Readiness},
		{"info only", `{"info":{"playerState":-1}}`, Readiness},
		{"null info", `{"event":"initialDelivery","info":null}`, Irrelevant},
		{"structured object", map[string]any{"event": "onReady"}, Readiness},
		{"raw message", json.RawMessage(`{"event":"infoDelivery"}`), Readiness},
		{"bytes", []byte(`{"event":"onStateChange"}`), Irrelevant},
		{"unrelated object", `{"type":"resize"}`, Irrelevant},
		{"array", `[1,2]`, Irrelevant},
		{"plain text", `hello`, Malformed},
		{"json null", `null`, Malformed},
		{"number", 42, Malformed},
		{"nil", nil, Malformed},
		{"empty string", "", Malformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.data).Kind)
		})
	}
}

func TestNormalize_ExposesEvent(t *testing.T) {
	res := Normalize(`{"event":"onReady"}`)
	assert.Equal(t, "onReady", res.Event)
	assert.Equal(t, "onReady", res.Fields["event"])
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed("https://www.youtube.com", nil))
	assert.True(t, OriginAllowed("https://www.youtube-nocookie.com", nil))
	assert.False(t, OriginAllowed("https://vimeo.com", nil))
	assert.False(t, OriginAllowed("", nil))
	assert.True(t, OriginAllowed("https://player.example", []string{"example"}))
}

func TestAccept_EachConditionRejects(t *testing.T) {
	target := Target{Window: "w1", ID: "yt-iframe-abc"}
	ok := Message{Origin: "https://www.youtube.com", Source: "w1", Data: `{"event":"onReady"}`}
	assert.True(t, Accept(ok, target, nil))

	wrongOrigin := ok
	wrongOrigin.Origin = "https://evil.example"
	assert.False(t, Accept(wrongOrigin, target, nil))

	wrongSource := ok
	wrongSource.Source = "w2"
	assert.False(t, Accept(wrongSource, target, nil))

	noMarker := ok
	noMarker.Data = `{"event":"onStateChange"}`
	assert.False(t, Accept(noMarker, target, nil))

	malformed := ok
	malformed.Data = `{not json`
	assert.False(t, Accept(malformed, target, nil))

	assert.False(t, Accept(Message{Origin: ok.Origin, Data: ok.Data}, Target{}, nil))
}

func TestListeningText(t *testing.T) {
	assert.JSONEq(t, `{"event":"listening","id":"yt-iframe-1"}`, ListeningText("yt-iframe-1"))
	assert.JSONEq(t, `{"event":"listening","id":null}`, ListeningText(""))
}

func TestCommandText(t *testing.T) {
	assert.JSONEq(t, `{"event":"command","func":"mute","args":[]}`, CommandText(FuncMute))
	assert.JSONEq(t, `{"event":"command","func":"playVideo","args":[]}`, CommandText(FuncPlay))
}
