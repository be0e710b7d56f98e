// Package dom models the DOM snapshot serialised by the page bridge and
// implements the scanner: finding the "next" control and the embedded
// player frame, descending into open shadow roots where needed.
package dom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultLabel is the visible text of the control that advances the page.
const DefaultLabel = "selanjutnya"

// DefaultFramePatterns are the embed URL fragments of the video host.
var DefaultFramePatterns = []string{"youtube.com/embed", "youtube-nocookie.com/embed"}

// ShadowRootTag is the Tag of the synthetic node holding a shadow tree.
const ShadowRootTag = "#shadow-root"

// Node is one element of a snapshot. References are only meaningful for
// the snapshot they came from: any DOM mutation may invalidate them.
type Node struct {
	Ref      string            `json:"ref"`
	Tag      string            `json:"tag"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Rendered bool              `json:"rendered"`
	Hidden   bool              `json:"hidden,omitempty"`
	Disabled bool              `json:"disabled,omitempty"`
	Window   string            `json:"window,omitempty"` // iframe contentWindow id
	Shadow   *Node             `json:"shadow,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// Attr returns the attribute value, or "" when absent.
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Decode parses a snapshot produced by the bridge.
func Decode(data []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("dom: decode snapshot: %w", err)
	}
	return &root, nil
}

// IsVisible is a best-effort heuristic: the element has a layout box and
// its computed visibility is not hidden.
func IsVisible(n *Node) bool {
	return n != nil && n.Rendered && !n.Hidden
}

// Walk visits n and its light-DOM descendants depth-first in document
// order. With pierce set, each shadow tree is visited before the host's
// children. fn returns false to stop the walk.
func Walk(n *Node, pierce bool, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	if pierce && n.Shadow != nil {
		if !Walk(n.Shadow, pierce, fn) {
			return false
		}
	}
	for _, c := range n.Children {
		if !Walk(c, pierce, fn) {
			return false
		}
	}
	return true
}

func isControlTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "button", "a", "div":
		return true
	}
	return false
}

// FindNextControl returns the first button, link or div in document order
// whose trimmed, case-folded text equals label and which is visible and
// enabled. Shadow trees are not searched. Returns nil when none qualify.
func FindNextControl(root *Node, label string) *Node {
	if label == "" {
		label = DefaultLabel
	}
	label = strings.ToLower(strings.TrimSpace(label))

	var found *Node
	Walk(root, false, func(n *Node) bool {
		if !isControlTag(n.Tag) {
			return true
		}
		if strings.ToLower(strings.TrimSpace(n.Text)) != label {
			return true
		}
		if !IsVisible(n) || n.Disabled {
			return true
		}
		found = n
		return false
	})
	return found
}

// FrameSource returns the lower-cased source URL of an iframe, falling
// back to the lazy-load attributes when src is empty.
func FrameSource(n *Node) string {
	src := n.Attr("src")
	if src == "" {
		src = n.Attr("data-src")
	}
	if src == "" {
		src = n.Attr("data-lazy-src")
	}
	return strings.ToLower(src)
}

// CollectFrames gathers every iframe reachable from root, including those
// inside nested shadow trees. Each subtree contributes its own light-DOM
// iframes first, then its shadow tree and children are explored; a frame
// is reported once.
func CollectFrames(root *Node) []*Node {
	seen := make(map[*Node]bool)
	var out []*Node

	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		for _, c := range n.Children {
			Walk(c, false, func(d *Node) bool {
				if strings.EqualFold(d.Tag, "iframe") && !seen[d] {
					seen[d] = true
					out = append(out, d)
				}
				return true
			})
		}
		walk(n.Shadow)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// MatchesPattern reports whether the frame source contains any pattern.
func MatchesPattern(src string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(src, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// FindPlayerFrame returns the first visible iframe whose source matches one
// of patterns (DefaultFramePatterns when empty), or nil.
func FindPlayerFrame(root *Node, patterns []string) *Node {
	if len(patterns) == 0 {
		patterns = DefaultFramePatterns
	}
	for _, f := range CollectFrames(root) {
		if MatchesPattern(FrameSource(f), patterns) && IsVisible(f) {
			return f
		}
	}
	return nil
}
