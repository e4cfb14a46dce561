// Package pipeline drives one download batch for a Douyin user.
//
// A batch resolves the profile link, probes the profile, streams the post
// listing, expands posts into media tasks, drops tasks that are already on
// disk, downloads the rest and retries the failed subset a bounded number of
// times. Residual failures are written to a checkpoint so a later run with
// Options.RetryFailed can pick them up without listing the profile again.
//
// Progress is reported through a Reporter, which both the console progress
// line and the TUI implement.
package pipeline
