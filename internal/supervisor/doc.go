// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

/*
Package supervisor provides process supervision for Echolog using suture v4.

It builds a hierarchical supervisor tree with Erlang/OTP-style restart
semantics: crashed services restart with exponential backoff, and failures
in one layer never take down the others.

	RootSupervisor ("echolog")
	├── DataSupervisor ("data-layer")
	│   └── CacheGCService (BadgerDB value log GC + memory cache sweep)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   └── SummarySchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in the weekly summary scheduler does not drop websocket
connections, and cache maintenance failures never block the API.

Services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning an error triggers a supervised restart; returning nil removes
the service; ctx.Err() after cancellation is a clean shutdown.

Supervisor events are logged through slog via the sutureslog adapter,
bridged onto the zerolog root logger by the logging package.

DuckDB is intentionally not supervised: it is an embedded library whose
failures would require a process restart anyway.
*/
package supervisor
