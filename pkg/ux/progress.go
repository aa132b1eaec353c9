// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
)

// GenerationEvent is one progress update from the planner's generation
// pipeline. Day and Days are zero for stages that are not per-day;
// Attempt is zero or one outside retry loops.
type GenerationEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
	Day     int    `json:"day,omitempty"`
	Days    int    `json:"days,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
}

// ProgressRenderer displays generation progress as a single updating
// spinner line. Create one per generation request; it is not safe for
// concurrent use.
type ProgressRenderer struct {
	writer      io.Writer
	personality PersonalityLevel
	spinner     *Spinner
}

// NewProgressRenderer creates a renderer writing to stdout with the
// current personality.
func NewProgressRenderer() *ProgressRenderer {
	return &ProgressRenderer{
		writer:      os.Stdout,
		personality: GetPersonality().Level,
	}
}

// NewProgressRendererWithWriter creates a renderer with a custom writer (for testing)
func NewProgressRendererWithWriter(w io.Writer, personality PersonalityLevel) *ProgressRenderer {
	return &ProgressRenderer{
		writer:      w,
		personality: personality,
	}
}

// Update renders one progress event, starting the spinner on the first
// call and updating its label afterwards.
func (r *ProgressRenderer) Update(ev GenerationEvent) {
	label := progressLabel(ev)

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "PROGRESS: %s\n", label)
		return
	}

	if r.spinner == nil {
		r.spinner = NewSpinner(label).WithType(SpinnerCompass)
		r.spinner.Start()
	} else {
		r.spinner.UpdateMessage(label)
	}
}

// Complete stops the spinner and prints a success line.
func (r *ProgressRenderer) Complete(message string) {
	r.stopSpinner()

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "OK: %s\n", message)
		return
	}
	Success(message)
}

// Fail stops the spinner and prints an error line.
func (r *ProgressRenderer) Fail(message string) {
	r.stopSpinner()

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "ERROR: %s\n", message)
		return
	}
	Error(message)
}

// Finish stops the spinner without printing anything. Use when the
// caller renders its own final output.
func (r *ProgressRenderer) Finish() {
	r.stopSpinner()
}

func (r *ProgressRenderer) stopSpinner() {
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}

// progressLabel flattens an event into one spinner line.
func progressLabel(ev GenerationEvent) string {
	label := ev.Message
	if label == "" {
		label = ev.Stage
	}
	if ev.Days > 0 && ev.Day > 0 {
		label = fmt.Sprintf("%s [day %d/%d]", label, ev.Day, ev.Days)
	}
	if ev.Attempt > 1 {
		label = fmt.Sprintf("%s (attempt %d)", label, ev.Attempt)
	}
	return label
}
