// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package debug provides pluggable event sinks for tracing the scheduling
// engine's internals.
package debug

// Event represents one action inside a frontier or crawler
type Event struct {
	// Type is the type of the event
	Type string
	// FrontierID identifies the frontier that produced the Event
	FrontierID uint32
	// Values contains the event's key-value pairs. Different types of
	// events carry different key-value pairs
	Values map[string]string
}

// Debugger is an interface for different types of debugging backends
type Debugger interface {
	// Init initializes the backend
	Init() error
	// Event receives a new event
	Event(e *Event)
}
