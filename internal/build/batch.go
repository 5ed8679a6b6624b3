// batch.go — building many documents concurrently.
package build

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Batch builds docs with up to workers running concurrently. Results come
// back in input order regardless of completion order. The shared image
// cache deduplicates fetches across documents.
func (p *Pipeline) Batch(ctx context.Context, docs []string, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	p.log.Debug("starting batch",
		zap.Int("documents", len(docs)),
		zap.Int("workers", workers))

	results := make([]Result, len(docs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result{Doc: docs[i], Err: err}
					continue
				}
				results[i] = p.Build(ctx, docs[i])
			}
		}()
	}
	for i := range docs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
