// Package controller decides, per viewed instrument, whether market data is
// pushed over a stream or pulled by polling, and keeps a bounded history of
// the ticks it receives.
//
// # States
//
//	Idle       nothing viewed yet
//	Deciding   probing the session status of a newly viewed symbol
//	Polled     session closed (or unknown); one quote was pulled
//	Streaming  subscribed and receiving pushed ticks
//	Failed     subscribe or stream failed
//
// From Polled and Failed a periodic re-check probes the session again and
// escalates to Streaming when it opens. The controller never downgrades from
// Streaming to polling on its own.
//
// # Concurrency
//
// All transitions happen on one goroutine. Network work runs in tasks that
// belong to a viewing session; each task reports back through an event
// tagged with its session id, and events from a superseded session are
// discarded. Switching symbols cancels the old session and waits for its
// tasks before the new session makes its first call.
package controller
