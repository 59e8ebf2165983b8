// Package notifier posts messages to chats asynchronously.
//
// Posts go through a bounded queue drained by a small worker pool. Every send
// waits on a shared token bucket so announcements never trip platform rate
// limits, and failed sends are retried with jittered exponential backoff.
// Identical posts to the same chat inside the dedup window are dropped.
package notifier
