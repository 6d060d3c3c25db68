// Package tracker ties a session together.
//
// A [Tracker] is built once per session. It loads progress from local storage, runs one-time migrations, routes
// toggles through the confirmation protocol with catalog metadata, and keeps the store in step with a remote
// mirror. Remote snapshots replace the store wholesale, unless a local push is still waiting for its echo: the
// mirror applies that push after the snapshot, so the store keeps the newer local state. Echoes are recognised
// by content and are neither stored nor announced on [Tracker.Updates].
package tracker
