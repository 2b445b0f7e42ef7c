// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trailhead

import (
	"context"
	"sync"
)

// WorkerPool runs submitted work items on a fixed number of goroutines.
// The HEAD pre-classifier uses it to probe content types off the
// crawl-control goroutine without unbounded goroutine growth.
type WorkerPool struct {
	work chan func()
	wg   sync.WaitGroup
	ctx  context.Context
}

// NewWorkerPool starts workers goroutines consuming from a queue of the
// given size. Submit blocks once the queue is full.
func NewWorkerPool(ctx context.Context, workers, queueSize int) *WorkerPool {
	wp := &WorkerPool{
		work: make(chan func(), queueSize),
		ctx:  ctx,
	}
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.run()
	}
	return wp
}

func (wp *WorkerPool) run() {
	defer wp.wg.Done()
	for {
		select {
		case work, ok := <-wp.work:
			if !ok {
				return
			}
			work()
		case <-wp.ctx.Done():
			return
		}
	}
}

// Submit queues a work item, blocking while the queue is full. It returns
// the context's error if the pool was cancelled.
func (wp *WorkerPool) Submit(work func()) error {
	select {
	case wp.work <- work:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight items to finish.
func (wp *WorkerPool) Close() {
	close(wp.work)
	wp.wg.Wait()
}
