package controller

// Status is a point-in-time snapshot of playback state for control
// surfaces.
type Status struct {
	FPS       int     `json:"fps"`
	BPM       float64 `json:"bpm"`
	Processor string  `json:"processor"`
	Position  int     `json:"position"`
	Length    int     `json:"length"`
	Running   bool    `json:"running"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	pl := c.playlists.Current()
	return Status{
		FPS:       c.fps,
		BPM:       c.bpm,
		Processor: c.currentName,
		Position:  pl.Position(),
		Length:    pl.Len(),
		Running:   pl.IsRunning(),
	}
}
