package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyindl/internal/downloader"
	"douyindl/internal/testutil"
	"douyindl/pkg/checkpoint"
	"douyindl/pkg/config"
	"douyindl/pkg/douyin"
	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
	"douyindl/pkg/pipeline"
	"douyindl/pkg/ratelimit"
	"douyindl/pkg/retry"
	"douyindl/pkg/storage"
)

const secUID = "MS4wLjABAAAApipelineUser"

type recordingReporter struct {
	mu       sync.Mutex
	stages   []string
	pages    []douyin.PageInfo
	profile  *douyin.Profile
	progress [][2]int
	finished *downloader.Stats
}

func (r *recordingReporter) OnStage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, msg)
}

func (r *recordingReporter) OnProfile(p *douyin.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = p
}

func (r *recordingReporter) OnPage(info douyin.PageInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, info)
}

func (r *recordingReporter) OnProgress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{done, total})
}

func (r *recordingReporter) OnLog([]string) {}

func (r *recordingReporter) Finish(stats downloader.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = &stats
}

type recordingNotifier struct {
	successes []string
	errors    []string
}

func (n *recordingNotifier) SendSuccess(title, message string) {
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) SendError(title, message string) {
	n.errors = append(n.errors, message)
}

type fixture struct {
	server   *testutil.FakeDouyin
	runner   *pipeline.Runner
	reporter *recordingReporter
	notifier *recordingNotifier
	base     string
	stateDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server := testutil.NewFakeDouyin()
	t.Cleanup(server.Close)

	client := douyin.NewClient(douyin.ClientConfig{
		PageDelay: time.Millisecond,
		Endpoints: douyin.Endpoints{BaseURL: server.BaseURL(), PagingURL: server.PagingURL()},
	}, logger.NewNopLogger())
	resolver := douyin.NewResolver(nil, "", logger.NewNopLogger())

	f := &fixture{
		server:   server,
		runner:   pipeline.New(client, resolver, logger.NewNopLogger()),
		reporter: &recordingReporter{},
		notifier: &recordingNotifier{},
		base:     t.TempDir(),
		stateDir: t.TempDir(),
	}
	f.runner.SetReporter(f.reporter)
	f.runner.SetNotifier(f.notifier)
	f.runner.SetCheckpointDir(f.stateDir)
	return f
}

func (f *fixture) options() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Input = douyin.UserURL(secUID)
	opts.BaseDir = f.base
	opts.Location = time.UTC
	opts.Engine.Workers = 4
	opts.Engine.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	opts.Engine.Limiter = ratelimit.Unlimited{}
	return opts
}

// seed registers alice with a video post and a two image note in a collection
func (f *fixture) seed() {
	f.server.AddProfile(secUID, "alice", 2)
	video := f.server.AddMedia("v1.mp4", []byte("video"))
	img1 := f.server.AddMedia("a.jpg", []byte("img-a"))
	img2 := f.server.AddMedia("b.jpg", []byte("img-b"))
	f.server.AddPage(secUID,
		testutil.VideoAweme("7001", "hello", 1700000000, testutil.Variant{BitRate: 1000, URL: video}),
		testutil.InCollection(testutil.ImageAweme("7002", "album", 1700000000, img1, img2), "Mix"),
	)
}

func (f *fixture) mediaRequests() int {
	return len(f.server.RequestsTo("/media/v1.mp4")) +
		len(f.server.RequestsTo("/media/a.jpg")) +
		len(f.server.RequestsTo("/media/b.jpg"))
}

func TestRunDownloadsProfile(t *testing.T) {
	f := newFixture(t)
	f.seed()

	res, err := f.runner.Run(context.Background(), f.options())
	require.NoError(t, err)

	userFolder := filepath.Join(f.base, "alice")
	assert.Equal(t, secUID, res.SecUserID)
	assert.Equal(t, userFolder, res.UserFolder)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 3, res.Stats.Success)
	assert.Equal(t, 1, res.Stats.Videos)
	assert.Equal(t, 2, res.Stats.Images)
	assert.Zero(t, res.Stats.FailedCount())
	assert.Equal(t, []string{
		"2023-11-14_hello.mp4",
		"Mix/images/2023-11-14_album_p1.jpg",
		"Mix/images/2023-11-14_album_p2.jpg",
	}, res.Stats.SuccessPaths)

	body, err := os.ReadFile(filepath.Join(userFolder, "Mix", "images", "2023-11-14_album_p2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "img-b", string(body))

	index, err := storage.Load(storage.LogPath(userFolder))
	require.NoError(t, err)
	assert.Equal(t, res.Stats.SuccessPaths, index.Paths())

	require.NotNil(t, f.reporter.profile)
	assert.Equal(t, "alice", f.reporter.profile.Nickname)
	require.Len(t, f.reporter.pages, 1)
	assert.Equal(t, 2, f.reporter.pages[0].Total)
	require.NotNil(t, f.reporter.finished)
	assert.Equal(t, 3, f.reporter.finished.Success)
	assert.Equal(t, [2]int{3, 3}, f.reporter.progress[len(f.reporter.progress)-1])

	require.Len(t, f.notifier.successes, 1)
	assert.Contains(t, f.notifier.successes[0], "alice: 3 downloaded")

	cpm, err := checkpoint.NewManagerInDir(f.stateDir, secUID)
	require.NoError(t, err)
	assert.False(t, cpm.Exists(), "a clean batch leaves no checkpoint")
}

func TestRerunDownloadsNothing(t *testing.T) {
	f := newFixture(t)
	f.seed()

	_, err := f.runner.Run(context.Background(), f.options())
	require.NoError(t, err)
	before := f.mediaRequests()

	for _, mode := range []storage.Mode{storage.ModeFilesystem, storage.ModeLog, storage.ModeBoth} {
		opts := f.options()
		opts.ResumeMode = mode
		res, err := f.runner.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Stats.Skipped, "mode %s", mode)
		assert.Equal(t, res.Tasks.Len(), res.Stats.Success, "mode %s", mode)
		assert.Equal(t, 1, res.Stats.Videos, "mode %s", mode)
		assert.Equal(t, 2, res.Stats.Images, "mode %s", mode)
		assert.Zero(t, res.Stats.Downloaded(), "mode %s", mode)
		assert.Equal(t, []string{
			"2023-11-14_hello.mp4",
			"Mix/images/2023-11-14_album_p1.jpg",
			"Mix/images/2023-11-14_album_p2.jpg",
		}, res.Stats.SuccessPaths, "mode %s", mode)
	}
	assert.Equal(t, before, f.mediaRequests())
	last := f.notifier.successes[len(f.notifier.successes)-1]
	assert.Contains(t, last, "alice: 0 downloaded, 3 already present")
}

func TestLogModeIgnoresFilesWithoutLog(t *testing.T) {
	f := newFixture(t)
	f.seed()

	_, err := f.runner.Run(context.Background(), f.options())
	require.NoError(t, err)
	require.NoError(t, os.Remove(storage.LogPath(filepath.Join(f.base, "alice"))))

	opts := f.options()
	opts.ResumeMode = storage.ModeLog
	res, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	// the files exist, so new downloads get unique names instead of overwriting
	assert.Equal(t, 3, res.Stats.Success)
	assert.Zero(t, res.Stats.Skipped)
	assert.NotContains(t, res.Stats.SuccessPaths, "2023-11-14_hello.mp4")
}

func TestAutoRetryRounds(t *testing.T) {
	f := newFixture(t)
	f.seed()
	f.server.FailMedia("a.jpg", 2)

	opts := f.options()
	opts.Engine.MaxRetries = 0
	opts.AutoRetryRounds = 3

	res, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Success)
	assert.Zero(t, res.Stats.FailedCount())
	assert.Equal(t, 3, res.Rounds)
	assert.Contains(t, f.reporter.stages, "Retrying 1 failed downloads (round 2/3)")
}

func TestResidualFailuresAreCheckpointed(t *testing.T) {
	f := newFixture(t)
	f.seed()
	f.server.FailMedia("v1.mp4", 3)

	opts := f.options()
	opts.Engine.MaxRetries = 0
	opts.AutoRetryRounds = 2

	res, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Success)
	require.Len(t, res.Stats.FailedVideos, 1)
	assert.Equal(t, f.server.MediaURL("v1.mp4"), res.Stats.FailedVideos[0].URL)
	require.Len(t, f.notifier.errors, 1)

	cpm, err := checkpoint.NewManagerInDir(f.stateDir, secUID)
	require.NoError(t, err)
	cp, err := cpm.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, res.RunID, cp.RunID)
	assert.Equal(t, "alice", cp.Nickname)
	require.Len(t, cp.Failed, 1)
	assert.Equal(t, 3, cp.TotalTasks)

	// the retry run skips the listing and clears the checkpoint
	listings := len(f.server.ListingRequests())
	retryOpts := f.options()
	retryOpts.RetryFailed = true
	retried, err := f.runner.Run(context.Background(), retryOpts)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Stats.Success)
	assert.Equal(t, []string{"2023-11-14_hello.mp4"}, retried.Stats.SuccessPaths)
	assert.Equal(t, listings, len(f.server.ListingRequests()))
	assert.False(t, cpm.Exists())

	index, err := storage.Load(storage.LogPath(filepath.Join(f.base, "alice")))
	require.NoError(t, err)
	assert.Equal(t, 3, index.Len())
}

func TestRetryFailedWithoutCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.seed()

	opts := f.options()
	opts.RetryFailed = true
	_, err := f.runner.Run(context.Background(), opts)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
}

func TestListOnlyDownloadsNothing(t *testing.T) {
	f := newFixture(t)
	f.seed()

	opts := f.options()
	opts.ListOnly = true
	res, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Len(t, res.Tasks.Videos, 1)
	assert.Len(t, res.Tasks.Images, 2)
	assert.Equal(t, 1, res.Tasks.Summary.Albums)
	assert.Zero(t, f.mediaRequests())
	assert.Nil(t, f.reporter.finished)
	_, err = os.Stat(filepath.Join(f.base, "alice"))
	assert.True(t, os.IsNotExist(err))
}

func TestOnlyAndCollectionToggle(t *testing.T) {
	f := newFixture(t)
	f.seed()

	opts := f.options()
	opts.Only = pipeline.OnlyImage
	opts.UseCollectionFolder = false
	opts.IncludeDate = false

	res, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"images/album_p1.jpg", "images/album_p2.jpg"}, res.Stats.SuccessPaths)
	assert.Empty(t, f.server.RequestsTo("/media/v1.mp4"))
}

func TestExportWritesWorkbook(t *testing.T) {
	f := newFixture(t)
	f.seed()

	opts := f.options()
	opts.Export = true
	opts.ListOnly = true
	res, err := f.runner.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.base, "alice", "export", "alice.xlsx"), res.ExportPath)
	_, err = os.Stat(res.ExportPath)
	assert.NoError(t, err)
}

func TestBatchErrors(t *testing.T) {
	t.Run("unresolvable input", func(t *testing.T) {
		f := newFixture(t)
		opts := f.options()
		opts.Input = "nothing to see here"
		_, err := f.runner.Run(context.Background(), opts)
		assert.True(t, errs.IsType(err, errs.ErrorTypeResolution))
	})

	t.Run("rejected profile", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.runner.Run(context.Background(), f.options())
		assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
		assert.Empty(t, f.server.ListingRequests())
	})

	t.Run("empty listing", func(t *testing.T) {
		f := newFixture(t)
		f.server.AddProfile(secUID, "alice", 0)
		_, err := f.runner.Run(context.Background(), f.options())
		assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	})

	t.Run("first page fails", func(t *testing.T) {
		f := newFixture(t)
		f.server.AddProfile(secUID, "alice", 1)
		f.server.SetErrorResponse("posts:"+secUID+":0", 500)
		_, err := f.runner.Run(context.Background(), f.options())
		assert.True(t, errs.IsType(err, errs.ErrorTypePageFetch))
	})
}

type cancellingReporter struct {
	*recordingReporter
	cancel context.CancelFunc
}

func (r cancellingReporter) OnStage(msg string) {
	r.recordingReporter.OnStage(msg)
	if strings.HasPrefix(msg, "Downloading") {
		r.cancel()
	}
}

func TestCancelledBatchStopsTasks(t *testing.T) {
	f := newFixture(t)
	f.seed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.SetReporter(cancellingReporter{recordingReporter: f.reporter, cancel: cancel})

	opts := f.options()
	opts.SecUserID = secUID
	res, err := f.runner.Run(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.Stopped)
	assert.Zero(t, res.Stats.Success)
	assert.Zero(t, f.mediaRequests())
	assert.Equal(t, 1, res.Rounds, "no retry rounds after cancellation")

	cpm, err := checkpoint.NewManagerInDir(f.stateDir, secUID)
	require.NoError(t, err)
	assert.False(t, cpm.Exists(), "stopped tasks are left to the resume check")
}

func TestParseOnly(t *testing.T) {
	tests := map[string]string{
		"":       pipeline.OnlyAll,
		"all":    pipeline.OnlyAll,
		"Video":  pipeline.OnlyVideo,
		"videos": pipeline.OnlyVideo,
		"image":  pipeline.OnlyImage,
		"notes":  pipeline.OnlyImage,
	}
	for in, want := range tests {
		got, err := pipeline.ParseOnly(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := pipeline.ParseOnly("audio")
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Download.Threads = 3
	cfg.Download.MaxRetries = 1
	cfg.Download.FallbackURL = false
	cfg.Download.RequestsPerMinute = 30
	cfg.Output.ResumeMode = "both"
	cfg.Export.Enabled = true
	cfg.Douyin.PageSize = 20

	opts := pipeline.OptionsFromConfig(cfg)
	assert.Equal(t, 3, opts.Engine.Workers)
	assert.Equal(t, 1, opts.Engine.MaxRetries)
	assert.False(t, opts.Engine.UseFallbackURL)
	assert.IsType(t, &ratelimit.SlidingWindow{}, opts.Engine.Limiter)
	assert.Equal(t, storage.ModeBoth, opts.ResumeMode)
	assert.True(t, opts.Export)
	assert.Equal(t, "xlsx", opts.ExportFormat)
	assert.Equal(t, 3, opts.AutoRetryRounds)

	cc := pipeline.ClientConfig(cfg)
	assert.Equal(t, 20, cc.Endpoints.PageSize)
	assert.Equal(t, douyin.BaseURL, cc.Endpoints.BaseURL)
	assert.Equal(t, cfg.Douyin.RequestTimeout, cc.Timeout)
}
