package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func el(tag, text string, children ...*Node) *Node {
	return &Node{Ref: tag + ":" + text, Tag: tag, Text: text, Rendered: true, Children: children}
}

func frame(ref, src string) *Node {
	return &Node{Ref: ref, Tag: "iframe", Rendered: true, Window: "w-" + ref, Attrs: map[string]string{"src": src}}
}

func TestFindNextControl_TrimmedCaseInsensitive(t *testing.T) {
	btn := el("button", "  Selanjutnya \n")
	root := el("body", "", el("div", "header"), btn)

	got := FindNextControl(root, "")
	require.NotNil(t, got)
	assert.Same(t, btn, got)
}

func TestFindNextControl_SkipsHiddenDisabledAndOtherTags(t *testing.T) {
	hidden := el("button", "selanjutnya")
	hidden.Hidden = true
	unrendered := el("a", "selanjutnya")
	unrendered.Rendered = false
	disabled := el("button", "selanjutnya")
	disabled.Disabled = true
	span := el("span", "selanjutnya")
	good := el("a", "SELANJUTNYA")

	root := el("body", "", hidden, unrendered, disabled, span, good)
	assert.Same(t, good, FindNextControl(root, DefaultLabel))
}

func TestFindNextControl_FirstInDocumentOrder(t *testing.T) {
	inner := el("button", "selanjutnya")
	outer := el("div", "selanjutnya", inner)
	root := el("body", "", outer)

	// The container div comes before its child in document order.
	assert.Same(t, outer, FindNextControl(root, ""))
}

func TestFindNextControl_IgnoresShadowTrees(t *testing.T) {
	host := el("div", "")
	host.Shadow = &Node{Tag: ShadowRootTag, Children: []*Node{el("button", "selanjutnya")}}
	root := el("body", "", host)

	assert.Nil(t, FindNextControl(root, ""))
}

func TestFindNextControl_NotFound(t *testing.T) {
	assert.Nil(t, FindNextControl(el("body", "", el("button", "sebelumnya")), ""))
	assert.Nil(t, FindNextControl(nil, ""))
}

func TestFrameSource_LazyFallbacks(t *testing.T) {
	f := &Node{Tag: "iframe", Attrs: map[string]string{"data-src": "https://WWW.YouTube.com/embed/x"}}
	assert.Equal(t, "https://www.youtube.com/embed/x", FrameSource(f))

	f = &Node{Tag: "iframe", Attrs: map[string]string{"data-lazy-src": "https://youtube-nocookie.com/embed/y"}}
	assert.Equal(t, "https://youtube-nocookie.com/embed/y", FrameSource(f))

	f = &Node{Tag: "iframe", Attrs: map[string]string{"src": "https://a", "data-src": "https://b"}}
	assert.Equal(t, "https://a", FrameSource(f))
}

func TestFindPlayerFrame_DescendsIntoNestedShadowRoots(t *testing.T) {
	player := frame("yt", "https://www.youtube.com/embed/abc?enablejsapi=1")
	innerHost := el("div", "")
	innerHost.Shadow = &Node{Tag: ShadowRootTag, Children: []*Node{player}}
	outerHost := el("section", "")
	outerHost.Shadow = &Node{Tag: ShadowRootTag, Children: []*Node{innerHost}}

	root := el("body", "", frame("ads", "https://ads.example/frame"), outerHost)

	got := FindPlayerFrame(root, nil)
	require.NotNil(t, got)
	assert.Equal(t, "yt", got.Ref)
}

func TestFindPlayerFrame_SkipsInvisible(t *testing.T) {
	hidden := frame("hidden", "https://www.youtube.com/embed/a")
	hidden.Hidden = true
	visible := frame("visible", "https://www.youtube-nocookie.com/embed/b")

	got := FindPlayerFrame(el("body", "", hidden, visible), nil)
	require.NotNil(t, got)
	assert.Equal(t, "visible", got.Ref)
}

func TestFindPlayerFrame_NoMatch(t *testing.T) {
	root := el("body", "", frame("vimeo", "https://player.vimeo.com/video/1"))
	assert.Nil(t, FindPlayerFrame(root, nil))
}

func TestCollectFrames_Dedup(t *testing.T) {
	a := frame("a", "x")
	b := frame("b", "y")
	root := el("body", "", el("div", "", a, el("div", "", b)))

	frames := CollectFrames(root)
	require.Len(t, frames, 2)
	assert.Equal(t, "a", frames[0].Ref)
	assert.Equal(t, "b", frames[1].Ref)
}

func TestDecode(t *testing.T) {
	root, err := Decode([]byte(`{"ref":"n1","tag":"body","rendered":true,"children":[
		{"ref":"n2","tag":"iframe","rendered":true,"window":"w1","attrs":{"src":"https://www.youtube.com/embed/z"}}]}`))
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "w1", root.Children[0].Window)

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)
}
