package playback

// Preview loop policy: a preview plays LoopLength seconds starting PreRoll
// seconds before the end of the clip.
const (
	PreRoll    = 15.0
	LoopLength = 5.0
)

type LoopWindow struct {
	Start  float64
	Length float64
}

// Window positions the preview loop for a clip of the given duration in
// seconds. Unknown durations (<= 0) loop from the beginning.
func Window(duration float64) LoopWindow {
	start := 0.0
	if duration > 0 {
		start = max(0, duration-PreRoll)
	}
	return LoopWindow{Start: start, Length: LoopLength}
}

// Next reports whether position has reached the end of the loop and, if
// so, where to seek.
func (w LoopWindow) Next(position float64) (float64, bool) {
	if position >= w.Start+w.Length {
		return w.Start, true
	}
	return position, false
}
