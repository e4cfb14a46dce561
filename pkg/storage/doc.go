// Package storage keeps the resume state of a user folder.
//
// The Index is a set of paths, relative to the user folder, that are known to
// be downloaded. It is persisted as a plain text success log
// ({user folder}/.douyindl/success.log, one path per line) that is rewritten
// atomically as the union of old and new entries.
//
// Filter decides which tasks can be skipped. In filesystem mode (the default)
// a task is skipped when its expected path exists on disk; log mode only
// trusts the success log; both accepts either.
//
//	idx, err := storage.Load(storage.LogPath(userDir))
//	done, todo, err := idx.Filter(ctx, userDir, tasks, storage.ModeFilesystem)
package storage
