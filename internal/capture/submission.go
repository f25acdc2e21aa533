// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package capture

import (
	"context"
	"errors"

	"github.com/rodada/rodada/internal/drafts"
	"github.com/rodada/rodada/internal/metrics"
	"github.com/rodada/rodada/internal/models"
	"github.com/rodada/rodada/internal/validation"
)

var (
	// ErrSubmitInProgress is returned when a submission is already running.
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrFinalized is returned for changes after a successful submission.
	ErrFinalized = errors.New("event already submitted")
)

// genericSubmitMessage is shown when the backend could not be reached or
// sent no message of its own.
const genericSubmitMessage = "No se pudo enviar el evento. Intentá nuevamente."

// SubmitError wraps a backend rejection. Message is shown as is.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// SubmissionController validates the form locally and finalizes it
// through the draft backend.
type SubmissionController struct {
	store     DraftStore
	inFlight  bool
	submitted *models.SubmittedEvent
}

// Validate checks the snapshot without any network call: required fields,
// a resolved position and a positive capacity.
func (c *SubmissionController) Validate(s models.FormSnapshot) error {
	if verr := validation.ValidateStruct(s); verr != nil {
		metrics.RecordSubmission("invalid")
		return verr
	}
	return nil
}

// Submitted returns the confirmed event, or nil.
func (c *SubmissionController) Submitted() *models.SubmittedEvent {
	if c.submitted == nil {
		return nil
	}
	ev := *c.submitted
	return &ev
}

// finalize performs the remote call. Runs without the session lock:
// update-and-submit when id is set, create-and-submit otherwise.
func (c *SubmissionController) finalize(ctx context.Context, owner string, id *models.DraftID, payload models.FormSnapshot) (models.SubmittedEvent, error) {
	ev, err := c.store.Finalize(ctx, owner, id, payload)
	if err == nil {
		metrics.RecordSubmission("submitted")
		return ev, nil
	}

	var se *drafts.ServerError
	if errors.As(err, &se) && se.Message != "" {
		metrics.RecordSubmission("rejected")
		return models.SubmittedEvent{}, &SubmitError{Message: se.Message, Err: err}
	}
	metrics.RecordSubmission("error")
	return models.SubmittedEvent{}, &SubmitError{Message: genericSubmitMessage, Err: err}
}
