package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyindl/internal/testutil"
	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
	"douyindl/pkg/media"
	"douyindl/pkg/retry"
)

type recordingSink struct {
	mu       sync.Mutex
	progress [][2]int
	batches  [][]string
	outcomes []Outcome
}

func (s *recordingSink) OnProgress(done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, [2]int{done, total})
}

func (s *recordingSink) OnLog(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]string(nil), lines...))
}

func (s *recordingSink) OnOutcome(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

var fixedNow = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	cfg.Now = fixedNow
	return cfg
}

func videoTask(url, desc string) media.Task {
	return media.Task{URL: url, Description: desc, Ext: ".mp4", Kind: media.KindVideo}
}

func TestEngineDownloadsIntoFolders(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()

	tasks := []media.Task{
		videoTask(server.AddMedia("v1", []byte("video-bytes")), "2023-11-14_hello"),
		{URL: server.AddMedia("i1", []byte("image")), Description: "album_b", Ext: ".jpg", Kind: media.KindImage, Collection: "Mix"},
		{URL: server.AddMedia("l1", []byte("live")), Description: "album_l", Ext: ".mp4", Kind: media.KindLive},
	}

	root := t.TempDir()
	stats := NewEngine(fastConfig(), nil, logger.NewNopLogger()).Run(context.Background(), tasks, root)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Success)
	assert.Equal(t, 1, stats.Videos)
	assert.Equal(t, 2, stats.Images)
	assert.Zero(t, stats.FailedCount())
	assert.Equal(t, []string{"2023-11-14_hello.mp4", "Mix/images/album_b.jpg", "images/album_l.mp4"}, stats.SuccessPaths)
	assert.Equal(t, int64(len("video-bytes")+len("image")+len("live")), stats.Bytes)

	body, err := os.ReadFile(filepath.Join(root, "2023-11-14_hello.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(body))

	for _, r := range server.RequestsTo("/media/v1") {
		assert.Equal(t, Referer, r.Referer)
	}
}

func TestEngineRetriesThenSucceeds(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()
	url := server.AddMedia("flaky", []byte("ok"))
	server.FailMedia("flaky", 3)

	cfg := fastConfig()
	cfg.UseFallbackURL = false
	sink := &recordingSink{}
	stats := NewEngine(cfg, sink, logger.NewNopLogger()).Run(context.Background(), []media.Task{videoTask(url, "flaky")}, t.TempDir())

	assert.Equal(t, 1, stats.Success)
	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, 4, sink.outcomes[0].Attempts)
	assert.Len(t, server.RequestsTo("/media/flaky"), 4)
}

func TestEngineFailsAfterMaxRetries(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()
	url := server.AddMedia("broken", []byte("never"))
	server.FailMedia("broken", 4)

	root := t.TempDir()
	sink := &recordingSink{}
	stats := NewEngine(fastConfig(), sink, logger.NewNopLogger()).Run(context.Background(), []media.Task{videoTask(url, "broken")}, root)

	assert.Zero(t, stats.Success)
	require.Len(t, stats.FailedVideos, 1)
	assert.Equal(t, url, stats.FailedVideos[0].URL, "failed task keeps its original URL")
	assert.Len(t, server.RequestsTo("/media/broken"), 4)

	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, OutcomeFailure, sink.outcomes[0].Kind)
	assert.True(t, errs.IsType(sink.outcomes[0].Err, errs.ErrorTypeDownload))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file is created for a failed download")
}

func TestEngineSwitchesToFallbackImmediately(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()

	task := videoTask(server.MediaURL("missing"), "clip")
	task.FallbackURL = server.AddMedia("fallback", []byte("low"))

	cfg := fastConfig()
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Hour}
	sink := &recordingSink{}

	done := make(chan Stats, 1)
	go func() {
		done <- NewEngine(cfg, sink, logger.NewNopLogger()).Run(context.Background(), []media.Task{task}, t.TempDir())
	}()

	select {
	case stats := <-done:
		assert.Equal(t, 1, stats.Success)
		require.Len(t, sink.outcomes, 1)
		assert.Equal(t, 2, sink.outcomes[0].Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("fallback retry should not wait for backoff")
	}
}

func TestEngineFallbackOnlyForVideos(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()

	task := media.Task{
		URL:         server.MediaURL("missing"),
		FallbackURL: server.AddMedia("other", []byte("x")),
		Description: "pic",
		Ext:         ".jpg",
		Kind:        media.KindImage,
	}
	cfg := fastConfig()
	cfg.MaxRetries = 1

	stats := NewEngine(cfg, nil, logger.NewNopLogger()).Run(context.Background(), []media.Task{task}, t.TempDir())
	assert.Len(t, stats.FailedImages, 1)
	assert.Empty(t, server.RequestsTo("/media/other"))
}

func TestEngineSameNameDoesNotOverwrite(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()

	tasks := []media.Task{
		videoTask(server.AddMedia("a", []byte("first")), "same"),
		videoTask(server.AddMedia("b", []byte("second")), "same"),
	}
	root := t.TempDir()
	stats := NewEngine(fastConfig(), nil, logger.NewNopLogger()).Run(context.Background(), tasks, root)

	require.Equal(t, 2, stats.Success)
	require.Len(t, stats.SuccessPaths, 2)
	assert.NotEqual(t, stats.SuccessPaths[0], stats.SuccessPaths[1])

	contents := map[string]bool{}
	for _, rel := range stats.SuccessPaths {
		b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		contents[string(b)] = true
	}
	assert.Equal(t, map[string]bool{"first": true, "second": true}, contents)
}

func TestEngineCancelledBeforeStart(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []media.Task{
		videoTask(server.AddMedia("a", []byte("a")), "a"),
		videoTask(server.AddMedia("b", []byte("b")), "b"),
	}
	stats := NewEngine(fastConfig(), nil, logger.NewNopLogger()).Run(ctx, tasks, t.TempDir())

	assert.Zero(t, stats.Success)
	assert.Zero(t, stats.FailedCount(), "stopped tasks are not failures")
	assert.Equal(t, 2, stats.Stopped)
	assert.Empty(t, server.RequestsTo("/media/a"))
}

func TestEngineCancelDuringBackoffIsStopped(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()
	url := server.AddMedia("slow", []byte("x"))
	server.FailMedia("slow", 10)

	cfg := fastConfig()
	cfg.Backoff = &retry.ConstantBackoff{Delay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sink := &recordingSink{}
	stats := NewEngine(cfg, sink, logger.NewNopLogger()).Run(ctx, []media.Task{videoTask(url, "slow")}, t.TempDir())

	assert.Equal(t, 1, stats.Stopped)
	assert.Zero(t, stats.FailedCount())
	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, OutcomeStopped, sink.outcomes[0].Kind)
}

func TestEngineProgressAndLogBatches(t *testing.T) {
	server := testutil.NewFakeDouyin()
	defer server.Close()

	tasks := make([]media.Task, 25)
	for i := range tasks {
		name := fmt.Sprintf("m%02d", i)
		tasks[i] = videoTask(server.AddMedia(name, []byte(name)), name)
	}

	sink := &recordingSink{}
	stats := NewEngine(fastConfig(), sink, logger.NewNopLogger()).Run(context.Background(), tasks, t.TempDir())
	require.Equal(t, 25, stats.Success)

	var dones []int
	for _, p := range sink.progress {
		assert.Equal(t, 25, p[1])
		dones = append(dones, p[0])
	}
	assert.Equal(t, []int{1, 6, 11, 16, 21, 25}, dones)

	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 20)
	assert.Len(t, sink.batches[1], 5)
	assert.True(t, strings.HasPrefix(sink.batches[0][0], "downloaded "))
	assert.Len(t, sink.outcomes, 25)
}

func TestEngineRemovesPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("truncated"))
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	root := t.TempDir()
	stats := NewEngine(cfg, nil, logger.NewNopLogger()).Run(context.Background(), []media.Task{videoTask(server.URL+"/v", "partial")}, root)

	assert.Len(t, stats.FailedVideos, 1)
	_, err := os.Stat(filepath.Join(root, "partial.mp4"))
	assert.True(t, os.IsNotExist(err), "partial file must be removed")
}

// stallingServer sends part of the body on the first request and then goes
// quiet until the client gives up. Later requests get the whole body.
func stallingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("partial"))
			w.(http.Flusher).Flush()
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte("complete"))
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return server, &calls
}

func runWithin(t *testing.T, limit time.Duration, e *Engine, tasks []media.Task, root string) Stats {
	t.Helper()
	done := make(chan Stats, 1)
	go func() { done <- e.Run(context.Background(), tasks, root) }()
	select {
	case stats := <-done:
		return stats
	case <-time.After(limit):
		t.Fatalf("engine still running after %s", limit)
		return Stats{}
	}
}

func TestEngineStalledBodyFails(t *testing.T) {
	server, _ := stallingServer(t)

	cfg := fastConfig()
	cfg.Timeout = 200 * time.Millisecond
	cfg.MaxRetries = 0
	root := t.TempDir()
	sink := &recordingSink{}
	stats := runWithin(t, 3*time.Second, NewEngine(cfg, sink, logger.NewNopLogger()),
		[]media.Task{videoTask(server.URL+"/v", "stalled")}, root)

	assert.Zero(t, stats.Stopped)
	require.Len(t, stats.FailedVideos, 1)
	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, OutcomeFailure, sink.outcomes[0].Kind)
	assert.True(t, errs.IsType(errors.Unwrap(sink.outcomes[0].Err), errs.ErrorTypeNetwork))

	_, err := os.Stat(filepath.Join(root, "stalled.mp4"))
	assert.True(t, os.IsNotExist(err), "partial file must be removed")
}

func TestEngineRetriesStalledBody(t *testing.T) {
	server, calls := stallingServer(t)

	cfg := fastConfig()
	cfg.Timeout = 200 * time.Millisecond
	cfg.MaxRetries = 1
	root := t.TempDir()
	stats := runWithin(t, 3*time.Second, NewEngine(cfg, nil, logger.NewNopLogger()),
		[]media.Task{videoTask(server.URL+"/v", "stalled")}, root)

	assert.Equal(t, 1, stats.Success)
	assert.Equal(t, int32(2), calls.Load())
	body, err := os.ReadFile(filepath.Join(root, "stalled.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "complete", string(body))
}

func TestEngineEmptyBatch(t *testing.T) {
	sink := &recordingSink{}
	stats := NewEngine(Config{}, sink, logger.NewNopLogger()).Run(context.Background(), nil, t.TempDir())
	assert.Zero(t, stats.Total)
	assert.Empty(t, sink.progress)
}

func TestCopyChunks(t *testing.T) {
	var sb strings.Builder
	data := strings.Repeat("x", chunkSize*2+10)
	n, err := copyChunks(context.Background(), &sb, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = copyChunks(ctx, &sb, strings.NewReader(data))
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("boom")
	_, err = copyChunks(context.Background(), &sb, iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

func TestStatsAbsorb(t *testing.T) {
	first := Stats{
		Success:      3,
		Videos:       2,
		Images:       1,
		FailedVideos: []media.Task{{Description: "a"}},
		FailedImages: []media.Task{{Description: "b"}},
		SuccessPaths: []string{"x.mp4"},
	}
	first.Absorb(Stats{Success: 1, Videos: 1, SuccessPaths: []string{"a.mp4"}, FailedImages: []media.Task{{Description: "b"}}})

	assert.Equal(t, 4, first.Success)
	assert.Equal(t, 3, first.Videos)
	assert.Empty(t, first.FailedVideos)
	assert.Len(t, first.Failed(), 1)
	assert.Equal(t, []string{"x.mp4", "a.mp4"}, first.SuccessPaths)
}

func TestStatsAddSatisfied(t *testing.T) {
	stats := Stats{Total: 3, Success: 1, Images: 1, SuccessPaths: []string{"b.jpg"}}
	stats.AddSatisfied([]media.Task{
		videoTask("u1", "a"),
		{Description: "c", Ext: ".jpg", Kind: media.KindImage, Collection: "Mix"},
	})

	assert.Equal(t, 3, stats.Success)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Downloaded())
	assert.Equal(t, 1, stats.Videos)
	assert.Equal(t, 2, stats.Images)
	assert.Equal(t, []string{"Mix/images/c.jpg", "a.mp4", "b.jpg"}, stats.SuccessPaths)
}
