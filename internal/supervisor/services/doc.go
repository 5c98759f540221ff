// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

/*
Package services provides suture.Service wrappers for Echolog components.

Each wrapper translates a component's native lifecycle (Start/Stop,
RunWithContext, ListenAndServe) into suture's context-aware Serve
pattern and implements fmt.Stringer so supervisor events identify the
service by name.

Available wrappers:

  - HTTPServerService: *http.Server with graceful shutdown draining
  - WebSocketHubService: the realtime push hub
  - SummarySchedulerService: the weekly summary cron scheduler
  - CacheGCService: BadgerDB value log GC and memory cache sweeping

Return values determine supervisor behavior: an error triggers a
restart with backoff, nil removes the service, and ctx.Err() after
cancellation is a clean shutdown.
*/
package services
