package deploy

import (
	"fmt"
	"net/http"
)

// ResultKind distinguishes how a rollout ended
type ResultKind string

const (
	ResultSucceeded          ResultKind = "succeeded"
	ResultRolledBack         ResultKind = "rolled_back"
	ResultRollbackFailed     ResultKind = "rollback_failed"
	ResultRollbackImpossible ResultKind = "rollback_impossible"
)

// Result is the structured outcome of a rollout
type Result struct {
	Kind      ResultKind
	RolloutID string

	// FailedService is the service whose update failed the rollout
	FailedService string
	// RevertFailedService is the service whose revert failed, if any
	RevertFailedService string
	// Err is the failure of FailedService, or of RevertFailedService for ResultRollbackFailed
	Err error

	Attempted []string
	Reverted  []string
	Skipped   []Skipped
}

// Payload is the JSON body relayed to webhook callers
type Payload struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

// Succeeded reports whether every service converged
func (r *Result) Succeeded() bool {
	return r.Kind == ResultSucceeded
}

// StatusCode is the HTTP status relayed to webhook callers
func (r *Result) StatusCode() int {
	if r.Succeeded() {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// Payload renders the result in the webhook response format
func (r *Result) Payload() Payload {
	switch r.Kind {
	case ResultSucceeded:
		return Payload{Message: "Successfully updated all services"}
	case ResultRolledBack:
		return Payload{
			Error:   "Stack update failed",
			Message: fmt.Sprintf("Service %s failed to update. Stack reverted", r.FailedService),
		}
	case ResultRollbackFailed:
		return Payload{
			Error:   "Stack revert failed",
			Message: fmt.Sprintf("Service %s failed to revert: %v", r.RevertFailedService, r.Err),
		}
	default:
		return Payload{
			Error:   "Stack revert failed",
			Message: "No backup images were created",
		}
	}
}

// String renders the payload as "error: message", or the message alone
func (p Payload) String() string {
	if p.Error == "" {
		return p.Message
	}
	return p.Error + ": " + p.Message
}

func (r *Result) String() string {
	return r.Payload().String()
}
