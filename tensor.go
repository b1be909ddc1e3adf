package productbg

import (
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type tensorPool struct {
	size       int64
	inputPool  sync.Pool
	outputPool sync.Pool
}

func newTensorPool(size int) *tensorPool {
	p := &tensorPool{size: int64(size)}
	p.inputPool.New = func() any {
		t, _ := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, p.size, p.size))
		return t
	}
	p.outputPool.New = func() any {
		t, _ := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, p.size, p.size))
		return t
	}
	return p
}

func (p *tensorPool) getInput() *ort.Tensor[float32] {
	return p.inputPool.Get().(*ort.Tensor[float32])
}

func (p *tensorPool) putInput(t *ort.Tensor[float32]) {
	p.inputPool.Put(t)
}

func (p *tensorPool) getOutput() *ort.Tensor[float32] {
	return p.outputPool.Get().(*ort.Tensor[float32])
}

func (p *tensorPool) putOutput(t *ort.Tensor[float32]) {
	p.outputPool.Put(t)
}
