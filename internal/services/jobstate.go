/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
	"github.com/felixgeelhaar/statekit"
)

const (
	stateIdle    = "idle"
	stateRunning = "running"
)

type jobContext struct{}

// jobState is the report job's Idle/Running machine. Transitions happen under
// mu so check-and-set is atomic; a second start while running is declined.
type jobState struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[jobContext]
	kind   string
	since  time.Time
}

func newJobState() (*jobState, error) {
	builder := statekit.NewMachine[jobContext]("report-job").
		WithInitial(statekit.StateID(stateIdle)).
		WithContext(jobContext{})

	builder.State(stateIdle).
		On("start").Target(stateRunning).
		Done()

	builder.State(stateRunning).
		On("finish").Target(stateIdle).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build job state machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &jobState{interp: interp}, nil
}

func (j *jobState) current() string { return string(j.interp.State().Value) }

func (j *jobState) tryStart(kind string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current() != stateIdle {
		return fmt.Errorf("%w: %s started %s", domain.ErrJobInProgress, j.kind, j.since.Format(time.RFC3339))
	}
	j.interp.Send(statekit.Event{Type: "start"})
	j.kind, j.since = kind, time.Now().UTC()
	return nil
}

func (j *jobState) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.interp.Send(statekit.Event{Type: "finish"})
	j.kind = ""
}

// snapshot returns whether a job runs, which kind and since when.
func (j *jobState) snapshot() (bool, string, time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current() == stateRunning, j.kind, j.since
}
