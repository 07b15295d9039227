package playlist

import "time"

// Item is one scheduled unit of show time: a processor name, its
// construction arguments, an optional display title and an optional
// duration. Items are immutable once queued, except for the remaining
// duration stashed between a stop and the next start.
type Item struct {
	Name     string
	Title    string
	Args     map[string]interface{}
	Duration time.Duration // 0 means play indefinitely

	remaining    time.Duration
	hasRemaining bool
}

// NewItem builds an item. An empty title defaults to the processor name.
// durationSec <= 0 means no auto-advance. Arguments are snapshotted so the
// queue never aliases a live processor's state.
func NewItem(name, title string, durationSec int, args map[string]interface{}) *Item {
	if title == "" {
		title = name
	}
	var d time.Duration
	if durationSec > 0 {
		d = time.Duration(durationSec) * time.Second
	}
	return &Item{
		Name:     name,
		Title:    title,
		Duration: d,
		Args:     copyArgs(args),
	}
}

func copyArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// itemSpec is the stored descriptor shape of an Item.
type itemSpec struct {
	Name     string                 `json:"name"`
	Title    *string                `json:"title"`
	Duration *int                   `json:"duration"`
	Args     map[string]interface{} `json:"args"`
}

func (it *Item) toSpec() itemSpec {
	title := it.Title
	var dur *int
	if it.Duration > 0 {
		secs := int(it.Duration / time.Second)
		dur = &secs
	}
	return itemSpec{
		Name:     it.Name,
		Title:    &title,
		Duration: dur,
		Args:     it.Args,
	}
}

func itemFromSpec(s itemSpec) *Item {
	title := ""
	if s.Title != nil {
		title = *s.Title
	}
	secs := 0
	if s.Duration != nil {
		secs = *s.Duration
	}
	return NewItem(s.Name, title, secs, s.Args)
}
