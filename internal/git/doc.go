// Package git checks out the external repositories the documentation build
// depends on, using go-git in-process.
//
// A non-incremental checkout always starts from a fresh clone, matching the
// behaviour of a CI checkout action. Incremental checkouts fetch into an
// existing working copy and hard-reset it to the remote branch tip (or the
// pinned ref), so local edits never survive a build.
package git
