package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the send pipeline. The queue consumer treats
// any non-nil handler error as retryable up to the configured attempt limit,
// after which the job is dead-lettered; expected no-ops (ineligible lead,
// exhausted quota) are reported as nil by the worker and never reach retry.
var (
	// ErrAuthExpired means the provider rejected the account's credentials.
	// The account is flipped to ERROR as a side effect; the job itself is
	// retried because a different account may succeed.
	ErrAuthExpired = errors.New("email account authentication expired")

	// ErrNoActiveAccount means the tenant has no ACTIVE mailbox to send
	// from. Retried a bounded number of times in case one is reconnected.
	ErrNoActiveAccount = errors.New("no active email account for tenant")

	// ErrStepCountMismatch rejects a reorder whose id list does not match
	// the campaign's existing step set.
	ErrStepCountMismatch = errors.New("step list does not match existing steps")

	// ErrNoSteps rejects starting a campaign with an empty sequence.
	ErrNoSteps = errors.New("campaign has no steps")
)

// ErrCampaignNotFound is a typed not-found error carrying the id.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

// NewCampaignNotFound is a helper constructor.
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrStepNotFound signals a missing campaign step. When raised inside the
// worker it is a data integrity fault: retried to absorb replica lag, then
// dead-lettered.
type ErrStepNotFound struct {
	StepID string
}

func (e *ErrStepNotFound) Error() string {
	return fmt.Sprintf("campaign step %s not found", e.StepID)
}

func NewStepNotFound(id string) error {
	return &ErrStepNotFound{StepID: id}
}

// ErrLeadNotFound signals a missing lead row.
type ErrLeadNotFound struct {
	LeadID string
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead %s not found", e.LeadID)
}

func NewLeadNotFound(id string) error {
	return &ErrLeadNotFound{LeadID: id}
}

// ErrInvalidTransition rejects a campaign lifecycle change that the state
// machine does not allow.
type ErrInvalidTransition struct {
	From, To string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot transition campaign from %s to %s", e.From, e.To)
}

// IsNotFound reports whether err is any of the typed not-found errors.
func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var s *ErrStepNotFound
	var l *ErrLeadNotFound
	return errors.As(err, &c) || errors.As(err, &s) || errors.As(err, &l)
}
