package graph

import "sync"

// Scratch buffers for Process calls. Each open device drives the graph from
// its own real-time thread, so rent/return must be safe concurrently; a
// sync.Pool gives that without a shared lock on the hot path. Buffers are
// pooled as pointers to avoid an allocation per Put.
var scratchPool = sync.Pool{
	New: func() any {
		buf := make([]float32, 0, 4096)
		return &buf
	},
}

// acquireScratch returns a zeroed float32 buffer of length n. Release it
// with releaseScratch when done; the backing array is reused across periods.
func acquireScratch(n int) *[]float32 {
	p := scratchPool.Get().(*[]float32)
	buf := *p
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	clear(buf)
	*p = buf
	return p
}

func releaseScratch(p *[]float32) {
	scratchPool.Put(p)
}
