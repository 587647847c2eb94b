package trial

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TrialStatus is the wire contract served at GET /api/billing/trial.
type TrialStatus struct {
	IsTrialActive   bool      `json:"isTrialActive"`
	DaysLeft        int       `json:"daysLeft"`
	TrialEndDate    time.Time `json:"trialEndDate"`
	HasSubscription bool      `json:"hasSubscription"`
}

// State is what the product shows for a TrialStatus.
type State string

const (
	Hidden      State = "hidden"
	ActiveTrial State = "active_trial"
	Expired     State = "expired"
)

// Facts are the stored inputs the gate is computed from.
type Facts struct {
	CreatedAt    time.Time     `json:"created_at"`
	TrialLength  time.Duration `json:"trial_length"`
	Subscribed   bool          `json:"subscribed"`
	SubscribedAt *time.Time    `json:"subscribed_at,omitempty"`
}

var ErrInvalidStatus = errors.New("trial: invalid status")

// Validate rejects statuses no server would produce.
func (s TrialStatus) Validate() error {
	if s.TrialEndDate.IsZero() {
		return fmt.Errorf("%w: trialEndDate is required", ErrInvalidStatus)
	}
	if s.DaysLeft < 0 {
		return fmt.Errorf("%w: daysLeft must not be negative", ErrInvalidStatus)
	}
	if !s.HasSubscription && !s.IsTrialActive && s.DaysLeft != 0 {
		return fmt.Errorf("%w: daysLeft must be 0 once the trial has ended", ErrInvalidStatus)
	}
	return nil
}

type rawStatus struct {
	IsTrialActive   *bool      `json:"isTrialActive"`
	DaysLeft        *int       `json:"daysLeft"`
	TrialEndDate    *time.Time `json:"trialEndDate"`
	HasSubscription *bool      `json:"hasSubscription"`
}

// DecodeTrialStatus parses a status payload, rejecting missing or mistyped fields.
func DecodeTrialStatus(b []byte) (TrialStatus, error) {
	var raw rawStatus
	if err := json.Unmarshal(b, &raw); err != nil {
		return TrialStatus{}, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	switch {
	case raw.IsTrialActive == nil:
		return TrialStatus{}, fmt.Errorf("%w: isTrialActive is required", ErrInvalidStatus)
	case raw.DaysLeft == nil:
		return TrialStatus{}, fmt.Errorf("%w: daysLeft is required", ErrInvalidStatus)
	case raw.TrialEndDate == nil:
		return TrialStatus{}, fmt.Errorf("%w: trialEndDate is required", ErrInvalidStatus)
	case raw.HasSubscription == nil:
		return TrialStatus{}, fmt.Errorf("%w: hasSubscription is required", ErrInvalidStatus)
	}

	s := TrialStatus{
		IsTrialActive:   *raw.IsTrialActive,
		DaysLeft:        *raw.DaysLeft,
		TrialEndDate:    *raw.TrialEndDate,
		HasSubscription: *raw.HasSubscription,
	}
	if err := s.Validate(); err != nil {
		return TrialStatus{}, err
	}
	return s, nil
}
