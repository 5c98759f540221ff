// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package services

import (
	"context"
)

// HubRunner matches the websocket hub's run loop.
type HubRunner interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService wraps the websocket hub as a supervised service.
// The hub's RunWithContext already follows suture's contract, so the
// wrapper only contributes the service name.
type WebSocketHubService struct {
	hub  HubRunner
	name string
}

// NewWebSocketHubService creates a websocket hub service wrapper.
func NewWebSocketHubService(hub HubRunner) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (s *WebSocketHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *WebSocketHubService) String() string {
	return s.name
}
