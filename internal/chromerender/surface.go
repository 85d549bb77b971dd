package chromerender

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"pkt.systems/framereel/core"
	"pkt.systems/framereel/schema"
)

// Node attributes the page cooperates with. Exclusion and mask opt-in or
// opt-out are declared in markup; everything else is derived.
const (
	attrExclude = "data-reel-exclude"
	attrMaskIn  = "data-reel-mask"
	attrMaskOut = "data-reel-unmask"
	markerID    = "__reel_marker"
)

// PageSurface adapts the live page to the recorder's surface contract.
// Paths are CSS selectors resolved with querySelector.
type PageSurface struct {
	browser *Browser
}

var _ core.Surface = (*PageSurface)(nil)

func (s *PageSurface) Viewport(ctx context.Context) (schema.Size, error) {
	var dims [2]int
	err := s.browser.run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims))
	if err != nil {
		return schema.Size{}, err
	}
	return schema.Size{Width: dims[0], Height: dims[1]}, nil
}

func (s *PageSurface) ScrollOffset(ctx context.Context) (schema.Point, error) {
	var offset [2]int
	err := s.browser.run(ctx, chromedp.Evaluate(`[Math.round(window.scrollX), Math.round(window.scrollY)]`, &offset))
	if err != nil {
		return schema.Point{}, err
	}
	return schema.Point{X: offset[0], Y: offset[1]}, nil
}

func (s *PageSurface) NodeBounds(ctx context.Context, path string) (core.Rect, bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el || !el.isConnected) return null;
		const r = el.getBoundingClientRect();
		return [Math.round(r.left + window.scrollX), Math.round(r.top + window.scrollY), Math.round(r.width), Math.round(r.height)];
	})()`, path)
	var rect []int
	if err := s.browser.run(ctx, chromedp.Evaluate(script, &rect)); err != nil {
		return core.Rect{}, false, err
	}
	if len(rect) != 4 {
		return core.Rect{}, false, nil
	}
	return core.Rect{X: rect[0], Y: rect[1], Width: rect[2], Height: rect[3]}, true, nil
}

func (s *PageSurface) ExcludedNodes(ctx context.Context) ([]string, error) {
	return s.collectPaths(ctx, fmt.Sprintf(`[%s]`, attrExclude))
}

func (s *PageSurface) SetNodeHidden(ctx context.Context, path string, hidden bool) error {
	value := ""
	if hidden {
		value = "hidden"
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) el.style.visibility = %q;
		return true;
	})()`, path, value)
	return s.browser.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *PageSurface) FixedNodes(ctx context.Context) ([]string, error) {
	script := `(() => {
		const out = [];
		for (const el of document.body.querySelectorAll('*')) {
			const pos = getComputedStyle(el).position;
			if (pos === 'fixed' || pos === 'sticky') out.push(__reelPath(el));
		}
		return out;
	})()`
	var paths []string
	if err := s.browser.run(ctx, s.withPathHelper(script, &paths)); err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *PageSurface) SetNodeTranslation(ctx context.Context, path string, offset schema.Point) error {
	transform := ""
	if offset.X != 0 || offset.Y != 0 {
		transform = fmt.Sprintf("translate(%dpx, %dpx)", offset.X, offset.Y)
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) el.style.transform = %q;
		return true;
	})()`, path, transform)
	return s.browser.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *PageSurface) PlaceMarker(ctx context.Context, spec core.MarkerSpec) error {
	script := fmt.Sprintf(`(() => {
		let m = document.getElementById(%q);
		if (!m) {
			m = document.createElement('div');
			m.id = %q;
			document.body.appendChild(m);
		}
		const size = %d;
		m.style.cssText = 'position:absolute;pointer-events:none;z-index:2147483647;' +
			'border-radius:50%%;opacity:0.85;background:' + %q + ';' +
			'width:' + size + 'px;height:' + size + 'px;' +
			'left:' + (%d - size / 2) + 'px;top:' + (%d - size / 2) + 'px;';
		return true;
	})()`, markerID, markerID, spec.Size, spec.Color, spec.Position.X, spec.Position.Y)
	return s.browser.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *PageSurface) RemoveMarker(ctx context.Context) error {
	script := fmt.Sprintf(`(() => {
		const m = document.getElementById(%q);
		if (m) m.remove();
		return true;
	})()`, markerID)
	return s.browser.run(ctx, chromedp.Evaluate(script, nil))
}

func (s *PageSurface) MaskTargets(ctx context.Context) ([]core.MaskTarget, error) {
	script := fmt.Sprintf(`(() => {
		const out = [];
		for (const el of document.body.querySelectorAll('*')) {
			const tag = el.tagName.toLowerCase();
			if (tag === 'script' || tag === 'style' || tag === 'noscript') continue;
			let kind = null;
			if (tag === 'img' || tag === 'svg' || tag === 'canvas' || tag === 'video') kind = 'image';
			else if (tag === 'input' || tag === 'textarea' || tag === 'select') kind = 'input';
			else if (el.childElementCount === 0 && el.textContent.trim() !== '') kind = 'text';
			if (!kind) continue;
			out.push({
				path: __reelPath(el),
				kind: kind,
				opt_in: el.hasAttribute(%q),
				opt_out: el.hasAttribute(%q),
			});
		}
		return out;
	})()`, attrMaskIn, attrMaskOut)
	var raw []struct {
		Path   string `json:"path"`
		Kind   string `json:"kind"`
		OptIn  bool   `json:"opt_in"`
		OptOut bool   `json:"opt_out"`
	}
	if err := s.browser.run(ctx, s.withPathHelper(script, &raw)); err != nil {
		return nil, err
	}
	targets := make([]core.MaskTarget, 0, len(raw))
	for _, t := range raw {
		targets = append(targets, core.MaskTarget{
			Path:   t.Path,
			Kind:   core.NodeKind(t.Kind),
			OptIn:  t.OptIn,
			OptOut: t.OptOut,
		})
	}
	return targets, nil
}

func (s *PageSurface) ApplyMask(ctx context.Context, path string) error {
	// Blur preserves the node's geometry, keeping masked and unmasked
	// captures comparable.
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.dataset.reelMaskBackup = el.style.filter || '';
		el.style.filter = 'blur(8px)';
		return true;
	})()`, path)
	var ok bool
	if err := s.browser.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mask target %s not found", path)
	}
	return nil
}

func (s *PageSurface) RemoveMask(ctx context.Context, path string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el || !el.isConnected) return false;
		el.style.filter = el.dataset.reelMaskBackup || '';
		delete el.dataset.reelMaskBackup;
		return true;
	})()`, path)
	var ok bool
	if err := s.browser.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PageSurface) ReplayInteraction(ctx context.Context, ic schema.Interaction) error {
	// The synthetic duplicate carries a detail flag so the page's interceptor
	// lets it through instead of re-capturing it.
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q) || document.elementFromPoint(%d, %d);
		if (!el) return false;
		const ev = new MouseEvent('click', {
			bubbles: true,
			cancelable: true,
			clientX: %d,
			clientY: %d,
			button: %d,
		});
		ev.__reelSynthetic = true;
		el.dispatchEvent(ev);
		return true;
	})()`, ic.ElementPath, ic.ViewportCoords.X, ic.ViewportCoords.Y,
		ic.ViewportCoords.X, ic.ViewportCoords.Y, int(ic.Button))
	var ok bool
	if err := s.browser.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("replay target %s not found", ic.ElementPath)
	}
	return nil
}

func (s *PageSurface) CaptureHTML(ctx context.Context) (string, error) {
	var html string
	err := s.browser.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *PageSurface) collectPaths(ctx context.Context, selector string) ([]string, error) {
	script := fmt.Sprintf(`(() => {
		const out = [];
		for (const el of document.querySelectorAll(%q)) out.push(__reelPath(el));
		return out;
	})()`, selector)
	var paths []string
	if err := s.browser.run(ctx, s.withPathHelper(script, &paths)); err != nil {
		return nil, err
	}
	return paths, nil
}

// withPathHelper prefixes a script with __reelPath, which derives a stable
// css selector for an element from ids and child indexes.
func (s *PageSurface) withPathHelper(script string, result any) chromedp.Action {
	const helper = `const __reelPath = (el) => {
		const parts = [];
		while (el && el.nodeType === 1 && el !== document.documentElement) {
			if (el.id) { parts.unshift('#' + CSS.escape(el.id)); break; }
			const parent = el.parentElement;
			if (!parent) break;
			const idx = Array.prototype.indexOf.call(parent.children, el) + 1;
			parts.unshift(el.tagName.toLowerCase() + ':nth-child(' + idx + ')');
			el = parent;
		}
		return parts.join(' > ');
	};`
	return chromedp.Evaluate("(() => {"+helper+" return "+script+";})()", result)
}
