// Package checkpoint persists the tasks that still failed when a download
// batch ended, so that `douyindl download --retry-failed` can pick them up.
//
// One checkpoint file is kept per user under the XDG state directory:
//   - Linux: ~/.local/state/douyindl/checkpoints/
//   - macOS: ~/Library/Application Support/douyindl/checkpoints/
//   - Windows: %LOCALAPPDATA%/douyindl/checkpoints/
//
// Each batch gets a run ID. Files are replaced atomically and the previous
// version is kept as a .backup copy. A batch that ends with no failures
// removes the checkpoint.
package checkpoint
