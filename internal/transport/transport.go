// SPDX-License-Identifier: MIT
//
// Package transport fans analysis snapshots out to observers: logs, browser
// monitors over WebSocket, UDP telemetry and the terminal monitor.
package transport

import (
	"errors"

	applog "heliecho/internal/log"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe and must not block the caller for
// longer than it takes to queue or drop the data.
type Transport interface {
	Send(data any) error
	Close() error
}

// Group sends to several transports. A failing member is logged and does
// not stop delivery to the others.
type Group struct {
	members []Transport
}

// NewGroup creates a group of the non-nil transports.
func NewGroup(members ...Transport) *Group {
	g := &Group{}
	for _, m := range members {
		g.Add(m)
	}
	return g
}

// Add appends a transport; nil is ignored.
func (g *Group) Add(t Transport) {
	if t != nil {
		g.members = append(g.members, t)
	}
}

// Len returns the number of transports in the group.
func (g *Group) Len() int {
	return len(g.members)
}

// Send offers data to every member.
func (g *Group) Send(data any) error {
	for _, m := range g.members {
		if err := m.Send(data); err != nil {
			applog.Debugf("Transport: %T send failed: %v", m, err)
		}
	}
	return nil
}

// Close closes every member and returns the joined errors.
func (g *Group) Close() error {
	var errs []error
	for _, m := range g.members {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	g.members = nil
	return errors.Join(errs...)
}

var _ Transport = (*Group)(nil)
