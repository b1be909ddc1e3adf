package productbg

import "sync"

type mattingBufferPool struct {
	pool sync.Pool
}

func newMattingBufferPool() *mattingBufferPool {
	return &mattingBufferPool{
		pool: sync.Pool{
			New: func() any {
				return &mattingBuffer{}
			},
		},
	}
}

// mattingBuffer holds the float planes used by the guided filter.
type mattingBuffer struct {
	tmp    []float64
	guide  []float64
	mask   []float64
	meanI  []float64
	meanP  []float64
	corrI  []float64
	corrIP []float64
}

func (p *mattingBufferPool) get(size int) *mattingBuffer {
	buf := p.pool.Get().(*mattingBuffer)
	planes := []*[]float64{&buf.tmp, &buf.guide, &buf.mask, &buf.meanI, &buf.meanP, &buf.corrI, &buf.corrIP}
	for _, plane := range planes {
		if cap(*plane) < size {
			*plane = make([]float64, size)
		} else {
			*plane = (*plane)[:size]
		}
	}
	return buf
}

func (p *mattingBufferPool) put(buf *mattingBuffer) {
	p.pool.Put(buf)
}
