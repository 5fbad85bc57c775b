// Package cache owns the shared download cache directory. Every remote
// document is stored at CacheDir/<Key(identity)>, where Key is the hex SHA-256
// of the identity string. Writes go through FileStore, which pairs an atomic
// temp file + rename with an OS advisory lock so that readers in any process
// see either the old or the new bytes, never a mix. Consumers never touch an
// entry directly: Materialize copies it into a private lease file under
// CacheDir/tmp that the caller releases once done.
package cache
