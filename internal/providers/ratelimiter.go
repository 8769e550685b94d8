package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// requestJob is one queued HTTP call awaiting its turn under the rate
// limit, mirroring internal/clients/tradernet/sdk's request queue.
type requestJob struct {
	do       func() (*http.Response, error)
	resultCh chan requestResult
}

type requestResult struct {
	resp *http.Response
	err  error
}

// RateLimitedClient enforces a minimum spacing between requests for one
// adapter by funneling every call through a single worker goroutine, the
// same pattern internal/clients/tradernet/sdk/client.go uses for its
// 1.5s-between-requests policy, generalized here to a configurable
// per-adapter minimum spacing.
type RateLimitedClient struct {
	httpClient   *http.Client
	log          zerolog.Logger
	requestQueue chan requestJob
	stopChan     chan struct{}
	workerDone   chan struct{}
	minSpacing   time.Duration
	once         sync.Once
}

// NewRateLimitedClient builds a client enforcing minSpacing between
// requests, with per-request timeout applied via the context passed to Do.
func NewRateLimitedClient(minSpacing time.Duration, log zerolog.Logger) *RateLimitedClient {
	c := &RateLimitedClient{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		log:          log,
		requestQueue: make(chan requestJob, 100),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
		minSpacing:   minSpacing,
	}
	go c.worker()
	return c
}

// Do enqueues req to be executed once the rate limit window allows it,
// blocking the caller until the response (or an error) is ready or ctx is
// cancelled first.
func (c *RateLimitedClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resultCh := make(chan requestResult, 1)
	job := requestJob{
		do:       func() (*http.Response, error) { return c.httpClient.Do(req.WithContext(ctx)) },
		resultCh: resultCh,
	}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, fmt.Errorf("client is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resultCh:
		return result.resp, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *RateLimitedClient) worker() {
	defer close(c.workerDone)

	var lastRequestTime time.Time
	firstRequest := true

	process := func(job requestJob) {
		if !firstRequest {
			if elapsed := time.Since(lastRequestTime); elapsed < c.minSpacing {
				time.Sleep(c.minSpacing - elapsed)
			}
		}
		firstRequest = false

		resp, err := job.do()
		lastRequestTime = time.Now()
		job.resultCh <- requestResult{resp: resp, err: err}
	}

	for {
		select {
		case <-c.stopChan:
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					process(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			process(job)
		}
	}
}

// Close drains the queue and stops the worker goroutine.
func (c *RateLimitedClient) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		close(c.requestQueue)
		<-c.workerDone
	})
}
