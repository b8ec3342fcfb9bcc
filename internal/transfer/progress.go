package transfer

import (
	"io"
	"sync/atomic"
)

// Progress is one progress report of a streamed transfer. When the size of
// the payload is unknown the report is indeterminate and carries no percent.
type Progress struct {
	Received      int64 `json:"received"`
	Total         int64 `json:"total"`
	Indeterminate bool  `json:"indeterminate"`
}

// Percent returns the completion percentage, or false when indeterminate.
func (p Progress) Percent() (int, bool) {
	if p.Indeterminate || p.Total <= 0 {
		return 0, false
	}
	pct := int(p.Received * 100 / p.Total)
	return min(pct, 100), true
}

// ProgressReader counts bytes read from the wrapped reader and reports
// progress synchronously. With a known total it reports each time the
// percentage changes; otherwise it reports every chunk as indeterminate.
type ProgressReader struct {
	io.Reader
	Total      int64
	Current    atomic.Int64
	OnProgress func(Progress)

	lastPercent int
	finished    bool
}

// NewProgressReader wraps reader. total <= 0 means unknown size.
func NewProgressReader(total int64, reader io.Reader, onProgress func(Progress)) *ProgressReader {
	return &ProgressReader{Reader: reader, Total: total, OnProgress: onProgress, lastPercent: -1}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.Reader.Read(b)
	if n > 0 {
		p.Current.Add(int64(n))
		p.report(false)
	}
	if err == io.EOF && !p.finished {
		p.finished = true
		p.report(true)
	}
	return n, err
}

// Snapshot returns the current progress; safe to call from other goroutines.
func (p *ProgressReader) Snapshot() Progress {
	return Progress{Received: p.Current.Load(), Total: max(p.Total, 0), Indeterminate: p.Total <= 0}
}

func (p *ProgressReader) report(final bool) {
	if p.OnProgress == nil {
		return
	}
	snap := p.Snapshot()
	pct, known := snap.Percent()
	if known {
		if pct == p.lastPercent {
			return
		}
		p.lastPercent = pct
	} else if final && snap.Received == 0 {
		return
	}
	p.OnProgress(snap)
}
