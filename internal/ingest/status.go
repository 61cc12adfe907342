package ingest

import "slices"

// Status is the position of a session in the ingestion sequence.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusRequestingSlot Status = "requesting-slot"
	StatusTransferring   Status = "transferring"
	StatusConfirming     Status = "confirming"
	StatusPolling        Status = "polling"
	StatusExtracted      Status = "extracted"
	StatusExtractFailed  Status = "extract-failed"
	StatusTimedOut       Status = "timed-out"
	StatusTransferFailed Status = "transfer-failed"
)

// idle moves straight to polling only when resuming a known document.
var transitions = map[Status][]Status{
	StatusIdle:           {StatusRequestingSlot, StatusPolling},
	StatusRequestingSlot: {StatusTransferring, StatusTransferFailed},
	StatusTransferring:   {StatusConfirming, StatusTransferFailed},
	StatusConfirming:     {StatusPolling},
	StatusPolling:        {StatusExtracted, StatusExtractFailed, StatusTimedOut},
}

// Terminal reports whether no further automatic transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusExtracted, StatusExtractFailed, StatusTimedOut, StatusTransferFailed:
		return true
	}
	return false
}

// CanTransition reports whether s may move directly to next.
func (s Status) CanTransition(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// holdsDocument reports whether a session in s must carry a document id.
// transfer-failed is reachable from both sides of slot allocation.
func (s Status) holdsDocument() (required, forbidden bool) {
	switch s {
	case StatusIdle, StatusRequestingSlot:
		return false, true
	case StatusTransferFailed:
		return false, false
	}
	return true, false
}

// MessageClass is the user-facing category of a terminal status.
type MessageClass string

const (
	MessageSuccess          MessageClass = "success"
	MessageFailure          MessageClass = "failure"
	MessagePendingCheckBack MessageClass = "pending-check-back"
)

// MessageClass returns the single message class for a terminal status and
// false for statuses still in progress.
func (s Status) MessageClass() (MessageClass, bool) {
	switch s {
	case StatusExtracted:
		return MessageSuccess, true
	case StatusExtractFailed, StatusTransferFailed:
		return MessageFailure, true
	case StatusTimedOut:
		return MessagePendingCheckBack, true
	}
	return "", false
}
