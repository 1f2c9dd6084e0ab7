package views

// RangeSelector implements click and shift-click selection over the list of
// rows currently on screen. A plain click toggles one row and becomes the
// anchor; a shift-click selects every visible row between the anchor and the
// clicked row. The anchor stays put across repeated shift-clicks.
type RangeSelector struct {
	anchor   string
	selected map[string]bool
}

// NewRangeSelector returns an empty selector.
func NewRangeSelector() *RangeSelector {
	return &RangeSelector{selected: make(map[string]bool)}
}

// Click applies one click on id. visible is the filtered, displayed order.
// Clicks on ids not in visible are ignored.
func (r *RangeSelector) Click(visible []string, id string, shift bool) []string {
	pos := indexOf(visible, id)
	if pos < 0 {
		return r.Selected(visible)
	}

	anchorPos := indexOf(visible, r.anchor)
	if !shift || anchorPos < 0 {
		if r.selected[id] {
			delete(r.selected, id)
		} else {
			r.selected[id] = true
		}
		r.anchor = id
		return r.Selected(visible)
	}

	lo, hi := anchorPos, pos
	if lo > hi {
		lo, hi = hi, lo
	}
	r.selected = make(map[string]bool, hi-lo+1)
	for _, v := range visible[lo : hi+1] {
		r.selected[v] = true
	}
	return r.Selected(visible)
}

// Selected returns the selected ids that are still visible, in visible order.
func (r *RangeSelector) Selected(visible []string) []string {
	var out []string
	for _, v := range visible {
		if r.selected[v] {
			out = append(out, v)
		}
	}
	return out
}

// Anchor returns the current anchor id, or "".
func (r *RangeSelector) Anchor() string {
	return r.anchor
}

// Clear drops the selection and the anchor.
func (r *RangeSelector) Clear() {
	r.anchor = ""
	r.selected = make(map[string]bool)
}

func indexOf(ids []string, id string) int {
	if id == "" {
		return -1
	}
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
