package model

import (
	"fmt"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// clashes reports whether two views impose different required values
// on any user-control bit-rip they both touch for the same pod.
// Views that don't share a (hub,pod) never clash, regardless of their
// bindings elsewhere.
func clashes(a, b *View) bool {
	for pod, aBits := range a.HubPodUserCtrl {
		bBits, ok := b.HubPodUserCtrl[pod]
		if !ok {
			continue
		}

		for _, ab := range aBits {
			for _, bb := range bBits {
				if ab.Hi != bb.Hi || ab.Lo != bb.Lo {
					continue
				}

				if ab.Value != bb.Value {
					return true
				}
			}
		}
	}

	return false
}

// ApplyView attaches v to window windowIdx (1..3). If the window
// already holds views with a different timezone, the view is refused
// since a window holds one timezone. If v is already attached
// elsewhere, it is detached first, keeping it in at most one window.
// Every currently-attached view that clashes with v on a shared
// (hub,pod) user-control bit-rip is removed — from whichever window
// holds it — before v is attached; their names are returned so the
// caller can surface the removal.
func (c *Catalog) ApplyView(v *View, windowIdx int) ([]string, error) {
	win := c.WindowByIndex(windowIdx)
	if win == nil {
		return nil, sumperr.New(sumperr.ViewConflict, "invalid window index %d", windowIdx)
	}

	if len(win.Views) > 0 && win.Timezone != v.Timezone {
		return nil, sumperr.New(sumperr.ViewConflict,
			"view %q timezone %q does not match window %d timezone %q", v.Name, v.Timezone, windowIdx, win.Timezone)
	}

	c.detachView(v)

	var removed []string

	for _, w := range c.allAttachedViews() {
		if w == v {
			continue
		}

		if clashes(v, w) {
			c.detachView(w)
			removed = append(removed, w.Name)
		}
	}

	win.Timezone = v.Timezone
	win.Views = append(win.Views, v)
	v.attachedWindow = windowIdx

	return removed, nil
}

// RemoveView detaches v from its window and deletes every Signal
// whose ViewName matches it from the catalog's arena in the same
// pass.
func (c *Catalog) RemoveView(v *View) {
	c.detachView(v)

	kept := c.Signals[:0]

	for _, s := range c.Signals {
		if s.ViewName == v.Name {
			continue
		}

		kept = append(kept, s)
	}

	c.Signals = kept
}

func (c *Catalog) detachView(v *View) {
	if v.attachedWindow == 0 {
		return
	}

	win := c.WindowByIndex(v.attachedWindow)
	v.attachedWindow = 0

	if win == nil {
		return
	}

	kept := win.Views[:0]

	for _, existing := range win.Views {
		if existing != v {
			kept = append(kept, existing)
		}
	}

	win.Views = kept

	if len(win.Views) == 0 {
		win.Timezone = ""
	}
}

func (c *Catalog) allAttachedViews() []*View {
	var out []*View

	for _, win := range c.Windows {
		out = append(out, win.Views...)
	}

	return out
}

// String helps tests and logs name a view unambiguously.
func (v *View) String() string { return fmt.Sprintf("view(%s)", v.Name) }
