package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
	"douyindl/pkg/media"
	"douyindl/pkg/naming"
	"douyindl/pkg/ratelimit"
	"douyindl/pkg/retry"
)

const (
	// DefaultWorkers is the worker pool size
	DefaultWorkers = 8
	// DefaultTimeout bounds connecting, the wait for headers and every gap
	// between body chunks
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of attempts after the first
	DefaultMaxRetries = 3
	// Referer is sent with every media request
	Referer = "https://www.douyin.com/"

	chunkSize      = 8192
	logBatchSize   = 20
	progressEvery  = 5
	maxCreateTries = 16
)

// OutcomeKind classifies the result of a task
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeStopped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is the result of one task. Path is relative to the download root
// and slash separated.
type Outcome struct {
	Kind     OutcomeKind
	Task     media.Task
	Index    int
	Path     string
	Err      error
	Attempts int
	Bytes    int64
	Duration time.Duration
}

// Sink receives progress and log lines. Calls are made from a single
// goroutine.
type Sink interface {
	OnProgress(done, total int)
	OnLog(lines []string)
}

// OutcomeObserver is implemented by sinks that want every outcome
type OutcomeObserver interface {
	OnOutcome(Outcome)
}

// NopSink discards everything
type NopSink struct{}

func (NopSink) OnProgress(int, int) {}
func (NopSink) OnLog([]string)      {}

// Stats aggregates the outcomes of a batch. Success, the per-kind counts and
// SuccessPaths include tasks the resume index already satisfied; Skipped
// is the share of Success that needed no download.
type Stats struct {
	Total        int
	Success      int
	Videos       int
	Images       int
	Skipped      int
	Stopped      int
	FailedVideos []media.Task
	FailedImages []media.Task
	SuccessPaths []string
	Bytes        int64
	Elapsed      time.Duration
}

// Failed returns all failed tasks, videos first
func (s Stats) Failed() []media.Task {
	out := make([]media.Task, 0, len(s.FailedVideos)+len(s.FailedImages))
	out = append(out, s.FailedVideos...)
	return append(out, s.FailedImages...)
}

// Downloaded returns the number of files fetched in this batch
func (s Stats) Downloaded() int {
	return s.Success - s.Skipped
}

// AddSatisfied counts tasks that are already present as successes
func (s *Stats) AddSatisfied(tasks []media.Task) {
	for _, t := range tasks {
		s.Success++
		s.Skipped++
		s.countKind(t.Kind)
		s.SuccessPaths = append(s.SuccessPaths, naming.ExpectedPath(t))
	}
	sort.Strings(s.SuccessPaths)
}

func (s *Stats) countKind(k media.Kind) {
	if k == media.KindVideo {
		s.Videos++
	} else {
		s.Images++
	}
}

// FailedCount returns the number of failed tasks
func (s Stats) FailedCount() int {
	return len(s.FailedVideos) + len(s.FailedImages)
}

// Absorb folds a retry round into s. Successes accumulate and the failure
// sets are replaced by the round's residual failures.
func (s *Stats) Absorb(round Stats) {
	s.Success += round.Success
	s.Videos += round.Videos
	s.Images += round.Images
	s.Stopped += round.Stopped
	s.Bytes += round.Bytes
	s.Elapsed += round.Elapsed
	s.SuccessPaths = append(s.SuccessPaths, round.SuccessPaths...)
	s.FailedVideos = round.FailedVideos
	s.FailedImages = round.FailedImages
}

func (s *Stats) record(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		s.Success++
		s.Bytes += o.Bytes
		s.SuccessPaths = append(s.SuccessPaths, o.Path)
		s.countKind(o.Task.Kind)
	case OutcomeFailure:
		if o.Task.Kind == media.KindVideo {
			s.FailedVideos = append(s.FailedVideos, o.Task)
		} else {
			s.FailedImages = append(s.FailedImages, o.Task)
		}
	case OutcomeStopped:
		s.Stopped++
	}
}

// Config controls the download engine
type Config struct {
	Workers        int
	Timeout        time.Duration
	MaxRetries     int
	UserAgent      string
	UseFallbackURL bool
	Backoff        retry.BackoffStrategy
	Limiter        ratelimit.Limiter
	HTTPClient     *http.Client
	Now            func() time.Time
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Workers:        DefaultWorkers,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		UseFallbackURL: true,
		Backoff:        retry.DownloadBackoff(),
		Limiter:        ratelimit.Unlimited{},
		Now:            time.Now,
	}
}

// Engine downloads media tasks with a worker pool
type Engine struct {
	cfg    Config
	client *http.Client
	sink   Sink
	logger logger.Logger
}

// NewEngine creates a download engine. Zero config fields take defaults.
func NewEngine(cfg Config, sink Sink, log logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff == nil {
		cfg.Backoff = def.Backoff
	}
	if cfg.Limiter == nil {
		cfg.Limiter = def.Limiter
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout:   cfg.Timeout,
				ResponseHeaderTimeout: cfg.Timeout,
				MaxIdleConnsPerHost:   cfg.Workers,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	return &Engine{
		cfg:    cfg,
		client: client,
		sink:   sink,
		logger: log.WithField("component", "downloader"),
	}
}

// Run downloads tasks into root and blocks until every task has an outcome.
// Cancelling ctx stops new work; tasks never started count as stopped.
func (e *Engine) Run(ctx context.Context, tasks []media.Task, root string) Stats {
	start := time.Now()
	stats := Stats{Total: len(tasks)}
	if len(tasks) == 0 {
		return stats
	}

	pool := NewWorkerPool(e.cfg.Workers, e.processor(root), e.logger)
	pool.Start(ctx)

	submitted := make(chan int, 1)
	go func() {
		defer pool.Stop()
		n := 0
		for i, t := range tasks {
			if err := pool.Submit(ctx, Job{Index: i, Task: t}); err != nil {
				break
			}
			n++
		}
		submitted <- n
	}()

	observer, _ := e.sink.(OutcomeObserver)
	lines := make([]string, 0, logBatchSize)
	done := 0
	for out := range pool.Results() {
		done++
		stats.record(out)
		if observer != nil {
			observer.OnOutcome(out)
		}

		if line := describe(out); line != "" {
			lines = append(lines, line)
		}
		if len(lines) >= logBatchSize {
			e.sink.OnLog(lines)
			lines = make([]string, 0, logBatchSize)
		}
		if done%progressEvery == 1 || done == len(tasks) {
			e.sink.OnProgress(done, len(tasks))
		}
	}

	n := <-submitted
	stats.Stopped += len(tasks) - n
	if len(lines) > 0 {
		e.sink.OnLog(lines)
	}

	sort.Strings(stats.SuccessPaths)
	stats.Elapsed = time.Since(start)
	return stats
}

func describe(o Outcome) string {
	name := o.Task.Description + o.Task.Ext
	switch o.Kind {
	case OutcomeSuccess:
		return "downloaded " + o.Path
	case OutcomeFailure:
		return fmt.Sprintf("failed %s after %d attempts: %v", name, o.Attempts, o.Err)
	default:
		return ""
	}
}

func (e *Engine) processor(root string) ProcessFunc {
	return func(ctx context.Context, job Job, workerID int) Outcome {
		out := e.download(ctx, job.Task, root)
		out.Index = job.Index

		log := e.logger.WithField("worker_id", workerID)
		switch out.Kind {
		case OutcomeSuccess:
			logger.LogDownload(log, string(job.Task.Kind), out.Path, out.Attempts, out.Duration, nil)
		case OutcomeFailure:
			logger.LogDownload(log, string(job.Task.Kind), job.Task.URL, out.Attempts, out.Duration, out.Err)
		}
		return out
	}
}

// download fetches one task with retries. After a video's first failure the
// fallback URL is tried immediately.
func (e *Engine) download(ctx context.Context, task media.Task, root string) Outcome {
	start := time.Now()
	current := task.URL
	var (
		rel      string
		written  int64
		attempts int
	)

	err := retry.Do(func(attempt int) error {
		attempts = attempt
		if err := e.cfg.Limiter.Wait(ctx); err != nil {
			return err
		}
		p, n, err := e.fetch(ctx, current, task, root)
		if err != nil {
			return err
		}
		rel, written = p, n
		return nil
	}, &retry.Config{
		MaxAttempts: e.cfg.MaxRetries + 1,
		Backoff:     e.cfg.Backoff,
		RetryIf:     shouldRetry,
		Immediate: func(attempt int, _ error) bool {
			if attempt == 1 && e.useFallback(task) {
				current = task.FallbackURL
				return true
			}
			return false
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.LogRetry(e.logger, current, attempt, delay, err)
		},
		Context: ctx,
	})

	out := Outcome{Task: task, Attempts: attempts, Duration: time.Since(start)}
	switch {
	case err == nil:
		out.Kind = OutcomeSuccess
		out.Path = rel
		out.Bytes = written
	case ctx.Err() != nil:
		out.Kind = OutcomeStopped
		out.Err = ctx.Err()
	default:
		out.Kind = OutcomeFailure
		out.Err = errs.Download(current, err)
	}
	return out
}

func (e *Engine) useFallback(task media.Task) bool {
	return e.cfg.UseFallbackURL &&
		task.Kind == media.KindVideo &&
		task.FallbackURL != "" &&
		task.FallbackURL != task.URL
}

func shouldRetry(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// fetch performs a single GET and streams the body to a fresh file. The
// attempt is abandoned when no data arrives for the configured timeout.
func (e *Engine) fetch(ctx context.Context, rawURL string, task media.Task, root string) (string, int64, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	idle := time.AfterFunc(e.cfg.Timeout, cancel)
	defer idle.Stop()

	rel, n, err := e.fetchWithin(attemptCtx, idle, rawURL, task, root)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() != nil {
		return "", 0, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("media request stalled for %s", e.cfg.Timeout))
	}
	return rel, n, err
}

func (e *Engine) fetchWithin(ctx context.Context, idle *time.Timer, rawURL string, task media.Task, root string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	req.Header.Set("Referer", Referer)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", 0, errs.Wrap(errs.ErrorTypeNetwork, "media request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, errs.FromStatusCode(resp.StatusCode, "media request failed")
	}

	folder := naming.Folder(root, task.Collection, task.Kind)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create folder: %w", err)
	}

	f, path, err := createUnique(folder, task, rawURL, e.cfg.Now())
	if err != nil {
		return "", 0, err
	}

	n, err := copyChunks(ctx, f, &idleReader{r: resp.Body, timer: idle, timeout: e.cfg.Timeout})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel), n, nil
}

// createUnique opens a file that did not exist before. O_EXCL makes two
// workers racing for the same name end up with distinct files.
func createUnique(folder string, task media.Task, rawURL string, now time.Time) (*os.File, string, error) {
	for i := 0; i < maxCreateTries; i++ {
		path := naming.UniquePath(folder, task.Description, task.Ext, rawURL, now)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("failed to create file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("no free file name for %q in %s", task.Description, folder)
}

// idleReader pushes the idle deadline back after every successful read
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

// copyChunks copies r to w in fixed-size chunks, checking ctx between them
func copyChunks(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		nr, readErr := r.Read(buf)
		if nr > 0 {
			nw, err := w.Write(buf[:nr])
			total += int64(nw)
			if err != nil {
				return total, fmt.Errorf("failed to write file: %w", err)
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("failed to read body: %w", readErr)
		}
	}
}
