package docview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/Zemacs/openpaper/overlay"
	"github.com/Zemacs/openpaper/selection"
)

// registryJS installs an id registry over live DOM nodes so Go can hold
// stable references across evaluations.
const registryJS = `() => {
	if (window.__opview) return;
	window.__opview = {
		byId: new Map(),
		ids: new WeakMap(),
		next: 1,
		id(n) {
			if (!n) return 0;
			let i = this.ids.get(n);
			if (!i) { i = this.next++; this.ids.set(n, i); this.byId.set(i, n); }
			return i;
		},
		get(i) { return this.byId.get(i) || null; }
	};
}`

// View adapts the live page to the selection controller's view contract.
// One View per opened document.
type View struct {
	page        *rod.Page
	containerID int
	logger      *slog.Logger

	// One Go node per JS node id, so interface equality tracks DOM
	// identity. The overlay engine compares nodes by identity when it
	// orders boundaries.
	mu    sync.Mutex
	nodes map[int]*jsNode
}

// NewView installs the node registry and resolves the container element.
func NewView(tab *Tab, containerSelector string, logger *slog.Logger) (*View, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if containerSelector == "" {
		containerSelector = "body"
	}
	if _, err := tab.Page.Eval(registryJS); err != nil {
		return nil, fmt.Errorf("docview: install registry: %w", err)
	}
	res, err := tab.Page.Eval(`(sel) => {
		const el = document.querySelector(sel) || document.body;
		return window.__opview.id(el);
	}`, containerSelector)
	if err != nil {
		return nil, fmt.Errorf("docview: resolve container: %w", err)
	}
	return &View{
		page:        tab.Page,
		containerID: res.Value.Int(),
		logger:      logger,
		nodes:       make(map[int]*jsNode),
	}, nil
}

// InvalidateNodes drops cached node handles after a content mutation. The
// JS registry keeps old ids; stale handles simply stop matching anything.
func (v *View) InvalidateNodes() {
	v.mu.Lock()
	v.nodes = make(map[int]*jsNode)
	v.mu.Unlock()
}

// node returns the canonical Go handle for a JS node id.
func (v *View) node(id int, isText bool, text string) *jsNode {
	if id == 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if n, ok := v.nodes[id]; ok {
		return n
	}
	n := &jsNode{view: v, id: id, isText: isText, text: text}
	v.nodes[id] = n
	return n
}

type nodeInfo struct {
	ID     int    `json:"id"`
	IsText bool   `json:"is_text"`
	Text   string `json:"text"`
}

// CurrentRange returns the live selection when it is non-collapsed and
// falls inside the container.
func (v *View) CurrentRange() (overlay.Range, bool) {
	res, err := v.page.Eval(`(containerId) => {
		const reg = window.__opview;
		const container = reg.get(containerId);
		const sel = document.getSelection();
		if (!container || !sel || sel.rangeCount === 0 || sel.isCollapsed) return null;
		const r = sel.getRangeAt(0);
		if (!container.contains(r.commonAncestorContainer)) return null;
		const info = (n) => ({
			id: reg.id(n),
			is_text: n.nodeType === 3,
			text: n.nodeType === 3 ? n.data : ""
		});
		return {
			start: info(r.startContainer), start_offset: r.startOffset,
			end: info(r.endContainer), end_offset: r.endOffset
		};
	}`, v.containerID)
	if err != nil || evalNil(res) {
		return overlay.Range{}, false
	}

	var out struct {
		Start       nodeInfo `json:"start"`
		StartOffset int      `json:"start_offset"`
		End         nodeInfo `json:"end"`
		EndOffset   int      `json:"end_offset"`
	}
	if err := decodeValue(res, &out); err != nil {
		v.logger.Warn("docview: decode range", "error", err)
		return overlay.Range{}, false
	}

	rng := overlay.Range{
		Start: overlay.Boundary{Node: v.node(out.Start.ID, out.Start.IsText, out.Start.Text), Offset: out.StartOffset},
		End:   overlay.Boundary{Node: v.node(out.End.ID, out.End.IsText, out.End.Text), Offset: out.EndOffset},
	}
	if rng.Start.Node == nil || rng.End.Node == nil {
		return overlay.Range{}, false
	}
	return rng, true
}

// Container returns the scrollable container adapter.
func (v *View) Container() overlay.Container {
	return &jsContainer{view: v}
}

// PageID finds the page element enclosing the range start, for documents
// that mark pages with data-page-number.
func (v *View) PageID(rng overlay.Range) string {
	n, ok := rng.Start.Node.(*jsNode)
	if !ok {
		return ""
	}
	res, err := v.page.Eval(`(id) => {
		let n = window.__opview.get(id);
		if (!n) return "";
		if (n.nodeType === 3) n = n.parentElement;
		const page = n && n.closest ? n.closest('[data-page-number]') : null;
		return page ? page.getAttribute('data-page-number') : "";
	}`, n.id)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

var _ selection.View = (*View)(nil)

// jsNode is a Go handle over one live DOM node. Structure queries go back
// to the page; leaf text is fetched once at creation.
type jsNode struct {
	view   *View
	id     int
	isText bool
	text   string
}

func (n *jsNode) IsText() bool { return n.isText }
func (n *jsNode) Text() string { return n.text }

func (n *jsNode) Parent() overlay.Node {
	res, err := n.view.page.Eval(`(id) => {
		const reg = window.__opview;
		const node = reg.get(id);
		const p = node ? node.parentNode : null;
		if (!p || p.nodeType === 9) return null;
		return { id: reg.id(p), is_text: false, text: "" };
	}`, n.id)
	if err != nil || evalNil(res) {
		return nil
	}
	var info nodeInfo
	if err := decodeValue(res, &info); err != nil {
		return nil
	}
	parent := n.view.node(info.ID, false, "")
	if parent == nil {
		return nil
	}
	return parent
}

func (n *jsNode) Children() []overlay.Node {
	if n.isText {
		return nil
	}
	res, err := n.view.page.Eval(`(id) => {
		const reg = window.__opview;
		const node = reg.get(id);
		if (!node) return [];
		return Array.from(node.childNodes).map(c => ({
			id: reg.id(c),
			is_text: c.nodeType === 3,
			text: c.nodeType === 3 ? c.data : ""
		}));
	}`, n.id)
	if err != nil {
		return nil
	}
	var infos []nodeInfo
	if err := decodeValue(res, &infos); err != nil {
		return nil
	}
	out := make([]overlay.Node, 0, len(infos))
	for _, info := range infos {
		if child := n.view.node(info.ID, info.IsText, info.Text); child != nil {
			out = append(out, child)
		}
	}
	return out
}

func (n *jsNode) MeasureRange(start, end int) ([]overlay.Rect, error) {
	res, err := n.view.page.Eval(`(id, start, end) => {
		const node = window.__opview.get(id);
		if (!node || node.nodeType !== 3) return null;
		const max = node.data.length;
		const r = document.createRange();
		r.setStart(node, Math.min(start, max));
		r.setEnd(node, Math.min(end, max));
		return Array.from(r.getClientRects()).map(c => ({
			left: c.left, top: c.top, width: c.width, height: c.height
		}));
	}`, n.id, start, end)
	if err != nil {
		return nil, fmt.Errorf("docview: measure range: %w", err)
	}
	if evalNil(res) {
		return nil, fmt.Errorf("docview: node %d is gone", n.id)
	}
	return decodeRects(res)
}

var _ overlay.Node = (*jsNode)(nil)

// jsContainer adapts the container element to the overlay geometry
// contract.
type jsContainer struct {
	view *View
}

func (c *jsContainer) Bounds() (overlay.Rect, error) {
	res, err := c.view.page.Eval(`(id) => {
		const el = window.__opview.get(id);
		if (!el) return null;
		const b = el.getBoundingClientRect();
		return { left: b.left, top: b.top, width: b.width, height: b.height };
	}`, c.view.containerID)
	if err != nil {
		return overlay.Rect{}, fmt.Errorf("docview: container bounds: %w", err)
	}
	if evalNil(res) {
		return overlay.Rect{}, fmt.Errorf("docview: container is gone")
	}
	var r overlay.Rect
	if err := decodeValue(res, &r); err != nil {
		return overlay.Rect{}, err
	}
	return r, nil
}

func (c *jsContainer) Scroll() (float64, float64, error) {
	res, err := c.view.page.Eval(`(id) => {
		const el = window.__opview.get(id);
		if (!el) return null;
		if (el === document.body) {
			const s = document.scrollingElement || el;
			return { x: s.scrollLeft, y: s.scrollTop };
		}
		return { x: el.scrollLeft, y: el.scrollTop };
	}`, c.view.containerID)
	if err != nil {
		return 0, 0, fmt.Errorf("docview: container scroll: %w", err)
	}
	if evalNil(res) {
		return 0, 0, fmt.Errorf("docview: container is gone")
	}
	var out struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := decodeValue(res, &out); err != nil {
		return 0, 0, err
	}
	return out.X, out.Y, nil
}

func (c *jsContainer) Contains(n overlay.Node) bool {
	jn, ok := n.(*jsNode)
	if !ok {
		return false
	}
	res, err := c.view.page.Eval(`(containerId, nodeId) => {
		const reg = window.__opview;
		const container = reg.get(containerId);
		const node = reg.get(nodeId);
		return !!(container && node && container.contains(node));
	}`, c.view.containerID, jn.id)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (c *jsContainer) RangeRects(r overlay.Range) ([]overlay.Rect, error) {
	start, ok1 := r.Start.Node.(*jsNode)
	end, ok2 := r.End.Node.(*jsNode)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("docview: foreign nodes in range")
	}
	res, err := c.view.page.Eval(`(sid, soff, eid, eoff) => {
		const reg = window.__opview;
		const sn = reg.get(sid), en = reg.get(eid);
		if (!sn || !en) return null;
		const limit = (n, off) => {
			const max = n.nodeType === 3 ? n.data.length : n.childNodes.length;
			return Math.min(off, max);
		};
		const rng = document.createRange();
		rng.setStart(sn, limit(sn, soff));
		rng.setEnd(en, limit(en, eoff));
		return Array.from(rng.getClientRects()).map(c => ({
			left: c.left, top: c.top, width: c.width, height: c.height
		}));
	}`, start.id, r.Start.Offset, end.id, r.End.Offset)
	if err != nil {
		return nil, fmt.Errorf("docview: range rects: %w", err)
	}
	if evalNil(res) {
		return nil, fmt.Errorf("docview: range nodes are gone")
	}
	return decodeRects(res)
}

var _ overlay.Container = (*jsContainer)(nil)

func decodeRects(res *proto.RuntimeRemoteObject) ([]overlay.Rect, error) {
	var rects []overlay.Rect
	if err := decodeValue(res, &rects); err != nil {
		return nil, err
	}
	return rects, nil
}

func evalNil(res *proto.RuntimeRemoteObject) bool {
	return res.Value.Val() == nil
}

// decodeValue round-trips the eval result through JSON into v.
func decodeValue(res *proto.RuntimeRemoteObject, v any) error {
	data, err := json.Marshal(res.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
