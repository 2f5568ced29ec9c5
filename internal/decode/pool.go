package decode

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
)

// Pool runs decoder workers in parallel. Submit backpressures once all
// workers are busy: the request channel is unbuffered, so at most size
// decodes are in flight at any time.
type Pool struct {
	reqs chan poolReq
	wg   sync.WaitGroup
	size int

	closeOnce sync.Once
}

type poolReq struct {
	b64  string
	resp chan poolResp
}

type poolResp struct {
	decoded map[string]any
	err     error
}

// NewPool starts size workers sharing the immutable decoder.
func NewPool(dec *Decoder, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		reqs: make(chan poolReq),
		size: size,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for req := range p.reqs {
				bz, err := base64.StdEncoding.DecodeString(req.b64)
				if err != nil {
					req.resp <- poolResp{err: fmt.Errorf("tx bytes are not valid base64: %w", err)}
					continue
				}
				req.resp <- poolResp{decoded: dec.DecodeTx(bz)}
			}
		}()
	}
	return p
}

// Size returns the worker count.
func (p *Pool) Size() int { return p.size }

// Submit decodes one base64-encoded transaction, waiting for a free worker.
func (p *Pool) Submit(ctx context.Context, b64 string) (map[string]any, error) {
	req := poolReq{b64: b64, resp: make(chan poolResp, 1)}
	select {
	case p.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.resp:
		return resp.decoded, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close terminates the workers after in-flight decodes drain.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.reqs)
	})
	p.wg.Wait()
}
