package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"douyindl/internal/downloader"
	"douyindl/pkg/checkpoint"
	"douyindl/pkg/douyin"
	errs "douyindl/pkg/errors"
	"douyindl/pkg/export"
	"douyindl/pkg/logger"
	"douyindl/pkg/media"
	"douyindl/pkg/metadata"
	"douyindl/pkg/naming"
	"douyindl/pkg/storage"
)

// Reporter receives batch progress. ui.Display satisfies it.
type Reporter interface {
	downloader.Sink
	OnStage(msg string)
	OnProfile(p *douyin.Profile)
	OnPage(info douyin.PageInfo)
	Finish(stats downloader.Stats)
}

// Notifier announces the end of a batch. ui.Notifier satisfies it.
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// NopReporter discards progress
type NopReporter struct {
	downloader.NopSink
}

func (NopReporter) OnStage(string)            {}
func (NopReporter) OnProfile(*douyin.Profile) {}
func (NopReporter) OnPage(douyin.PageInfo)    {}
func (NopReporter) Finish(downloader.Stats)   {}

// Result describes a finished batch
type Result struct {
	RunID      string
	SecUserID  string
	Profile    *douyin.Profile
	UserFolder string
	Posts      []douyin.Post
	Tasks      media.TaskSet
	Stats      downloader.Stats
	ExportPath string
	Rounds     int
}

// Runner executes download batches. A Runner runs one batch at a time.
type Runner struct {
	client      *douyin.Client
	resolver    *douyin.Resolver
	reporter    Reporter
	notifier    Notifier
	checkpoints func(secUserID string) (*checkpoint.Manager, error)
	logger      logger.Logger
}

// New creates a Runner. The reporter and notifier default to no-ops.
func New(client *douyin.Client, resolver *douyin.Resolver, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{
		client:      client,
		resolver:    resolver,
		reporter:    NopReporter{},
		checkpoints: checkpoint.NewManager,
		logger:      log,
	}
}

// SetReporter sets the progress reporter
func (r *Runner) SetReporter(rep Reporter) {
	if rep == nil {
		rep = NopReporter{}
	}
	r.reporter = rep
}

// SetNotifier sets the end-of-batch notifier
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetCheckpointDir stores checkpoints in dir instead of the XDG state directory
func (r *Runner) SetCheckpointDir(dir string) {
	r.checkpoints = func(secUserID string) (*checkpoint.Manager, error) {
		return checkpoint.NewManagerInDir(dir, secUserID)
	}
}

// Run executes one batch. Batch level failures (resolution, auth, empty
// listing) are returned as errors; task failures end up in Result.Stats.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := r.logger.WithField("run_id", res.RunID)

	secUserID, err := r.resolve(ctx, opts)
	if err != nil {
		return res, err
	}
	res.SecUserID = secUserID
	log = log.WithField("sec_user_id", secUserID)

	cpm, err := r.checkpoints(secUserID)
	if err != nil {
		return res, fmt.Errorf("failed to open checkpoint: %w", err)
	}

	var set media.TaskSet
	if opts.RetryFailed {
		set, err = r.fromCheckpoint(cpm, res, opts)
	} else {
		set, err = r.fromListing(ctx, res, opts, log)
	}
	if err != nil {
		return res, err
	}
	res.Tasks = set

	if opts.ListOnly {
		log.InfoWithFields("Listed tasks", map[string]interface{}{
			"videos": len(set.Videos),
			"images": len(set.Images),
		})
		return res, nil
	}

	stats, err := r.download(ctx, res, set.All(), opts, log)
	if err != nil {
		return res, err
	}
	res.Stats = stats

	r.checkpoint(cpm, res, log)
	r.reporter.Finish(stats)
	r.notify(res)
	logger.LogBatch(log, res.RunID, stats.Success, stats.FailedCount(), stats.Skipped, stats.Elapsed)
	return res, nil
}

func (r *Runner) resolve(ctx context.Context, opts Options) (string, error) {
	if opts.SecUserID != "" {
		return opts.SecUserID, nil
	}
	r.reporter.OnStage("Resolving profile link")
	return r.resolver.Resolve(ctx, opts.Input)
}

// fromListing probes the profile, streams the listing and builds tasks
func (r *Runner) fromListing(ctx context.Context, res *Result, opts Options, log logger.Logger) (media.TaskSet, error) {
	r.reporter.OnStage("Checking profile")
	profile, err := r.client.FetchProfile(ctx, res.SecUserID)
	if err != nil {
		return media.TaskSet{}, err
	}
	res.Profile = profile
	res.UserFolder = naming.UserFolder(opts.BaseDir, profile.Nickname)
	r.reporter.OnProfile(profile)

	r.reporter.OnStage("Fetching posts")
	posts, err := r.client.FetchPosts(ctx, res.SecUserID, r.reporter.OnPage)
	if err != nil {
		return media.TaskSet{}, err
	}
	if len(posts) == 0 {
		return media.TaskSet{}, errs.New(errs.ErrorTypeNotFound, "no posts found for "+douyin.UserURL(res.SecUserID))
	}
	res.Posts = posts

	extractor := media.NewExtractor(opts.IncludeDate)
	if opts.Location != nil {
		extractor.Location = opts.Location
	}
	set := media.BuildTasks(posts, extractor)
	if !opts.UseCollectionFolder {
		set = set.WithoutCollections()
	}
	set = selectKinds(set, opts.Only)

	log.InfoWithFields("Built tasks", map[string]interface{}{
		"posts":       set.Summary.Posts,
		"videos":      len(set.Videos),
		"images":      len(set.Images),
		"albums":      set.Summary.Albums,
		"live_photos": set.Summary.LivePhotos,
	})

	if opts.Export {
		r.reporter.OnStage("Exporting post metadata")
		path, err := r.Export(res, opts)
		if err != nil {
			// the download can still proceed
			log.WithError(err).Warn("Export failed")
		}
		res.ExportPath = path
	}

	return set, nil
}

// Export writes the post metadata of a listed batch
func (r *Runner) Export(res *Result, opts Options) (string, error) {
	owner := metadata.Owner{SecUserID: res.SecUserID}
	if res.Profile != nil {
		owner.Nickname = res.Profile.Nickname
	}
	rows := metadata.FromPosts(res.Posts, owner)
	return export.New(opts.Location, r.logger).Export(res.UserFolder, owner.Nickname, opts.ExportFormat, rows)
}

// fromCheckpoint restores the failed tasks of the previous batch
func (r *Runner) fromCheckpoint(cpm *checkpoint.Manager, res *Result, opts Options) (media.TaskSet, error) {
	cp, err := cpm.Load()
	if err != nil {
		return media.TaskSet{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil || len(cp.Failed) == 0 {
		return media.TaskSet{}, errs.New(errs.ErrorTypeNotFound, "no failed downloads recorded for "+res.SecUserID)
	}

	res.Profile = &douyin.Profile{SecUID: cp.SecUserID, Nickname: cp.Nickname}
	res.UserFolder = cp.UserFolder
	if res.UserFolder == "" {
		res.UserFolder = naming.UserFolder(opts.BaseDir, cp.Nickname)
	}
	r.reporter.OnProfile(res.Profile)
	r.reporter.OnStage(fmt.Sprintf("Retrying %d failed downloads", len(cp.Failed)))

	var set media.TaskSet
	for _, t := range cp.Failed {
		if t.Kind == media.KindVideo {
			set.Videos = append(set.Videos, t)
		} else {
			set.Images = append(set.Images, t)
		}
	}
	return selectKinds(set, opts.Only), nil
}

// download filters already satisfied tasks, runs the engine and retries the
// failed subset
func (r *Runner) download(ctx context.Context, res *Result, tasks []media.Task, opts Options, log logger.Logger) (downloader.Stats, error) {
	logPath := storage.LogPath(res.UserFolder)
	index, err := storage.Load(logPath)
	if err != nil {
		log.WithError(err).Warn("Failed to read success log, starting empty")
		index = storage.NewIndex()
	}

	satisfied, todo, err := index.Filter(ctx, res.UserFolder, tasks, opts.ResumeMode)
	if err != nil {
		return downloader.Stats{}, errs.Wrap(errs.ErrorTypeCancelled, "resume check cancelled", err)
	}
	if len(satisfied) > 0 {
		log.InfoWithFields("Skipping downloaded tasks", map[string]interface{}{
			"skipped": len(satisfied),
			"mode":    string(opts.ResumeMode),
		})
	}

	engine := downloader.NewEngine(opts.Engine, r.reporter, log)

	r.reporter.OnStage(fmt.Sprintf("Downloading %d files (%d already present)", len(todo), len(satisfied)))
	stats := engine.Run(ctx, todo, res.UserFolder)
	res.Rounds = 1

	for round := 1; round <= opts.AutoRetryRounds && stats.FailedCount() > 0 && ctx.Err() == nil; round++ {
		failed := stats.Failed()
		r.reporter.OnStage(fmt.Sprintf("Retrying %d failed downloads (round %d/%d)", len(failed), round, opts.AutoRetryRounds))
		log.InfoWithFields("Retrying failed tasks", map[string]interface{}{
			"round":  round,
			"failed": len(failed),
		})
		stats.Absorb(engine.Run(ctx, failed, res.UserFolder))
		res.Rounds++
	}

	stats.Total = len(tasks)
	stats.AddSatisfied(satisfied)
	index.AddAll(stats.SuccessPaths)
	if err := index.Save(logPath); err != nil {
		log.WithError(err).Warn("Failed to write success log")
	}

	return stats, nil
}

// checkpoint records the residual failures, or clears the checkpoint
func (r *Runner) checkpoint(cpm *checkpoint.Manager, res *Result, log logger.Logger) {
	nickname := ""
	if res.Profile != nil {
		nickname = res.Profile.Nickname
	}

	cp, err := cpm.Load()
	if err != nil || cp == nil {
		cp = cpm.Create(res.SecUserID, nickname, res.UserFolder)
	}
	cp.RunID = res.RunID
	cp.UserFolder = res.UserFolder
	cp.Nickname = nickname
	cp.UpdatedAt = time.Now()

	if err := cpm.Record(cp, res.Stats.Failed(), res.Stats.Total, res.Stats.Success); err != nil {
		log.WithError(err).Warn("Failed to update checkpoint")
	}
}

func (r *Runner) notify(res *Result) {
	if r.notifier == nil {
		return
	}
	name := res.SecUserID
	if res.Profile != nil && res.Profile.Nickname != "" {
		name = res.Profile.Nickname
	}

	s := res.Stats
	if n := s.FailedCount(); n > 0 {
		r.notifier.SendError("Download finished with failures",
			fmt.Sprintf("%s: %d downloaded, %d failed", name, s.Downloaded(), n))
		return
	}
	r.notifier.SendSuccess("Download complete",
		fmt.Sprintf("%s: %d downloaded, %d already present", name, s.Downloaded(), s.Skipped))
}
