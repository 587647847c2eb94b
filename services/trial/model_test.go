package trial

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrialStatusJSON(t *testing.T) {
	s := Compute(trialFacts(), t0.Add(13*day+12*time.Hour))

	b, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"isTrialActive": true,
		"daysLeft": 1,
		"trialEndDate": "2026-01-19T09:30:00Z",
		"hasSubscription": false
	}`, string(b))

	decoded, err := DecodeTrialStatus(b)
	require.NoError(t, err)
	require.Equal(t, s.DaysLeft, decoded.DaysLeft)
	require.True(t, s.TrialEndDate.Equal(decoded.TrialEndDate))
}

func TestDecodeTrialStatusRejects(t *testing.T) {
	cases := map[string]string{
		"not json":            `<html>`,
		"missing field":       `{"isTrialActive": true, "daysLeft": 3, "hasSubscription": false}`,
		"wrong type":          `{"isTrialActive": "yes", "daysLeft": 3, "trialEndDate": "2026-01-19T09:30:00Z", "hasSubscription": false}`,
		"fractional days":     `{"isTrialActive": true, "daysLeft": 1.5, "trialEndDate": "2026-01-19T09:30:00Z", "hasSubscription": false}`,
		"negative days":       `{"isTrialActive": true, "daysLeft": -1, "trialEndDate": "2026-01-19T09:30:00Z", "hasSubscription": false}`,
		"days after expiry":   `{"isTrialActive": false, "daysLeft": 2, "trialEndDate": "2026-01-19T09:30:00Z", "hasSubscription": false}`,
		"bad date":            `{"isTrialActive": false, "daysLeft": 0, "trialEndDate": "tomorrow", "hasSubscription": false}`,
		"null subscription":   `{"isTrialActive": false, "daysLeft": 0, "trialEndDate": "2026-01-19T09:30:00Z", "hasSubscription": null}`,
		"zero trial end date": `{"isTrialActive": false, "daysLeft": 0, "trialEndDate": "0001-01-01T00:00:00Z", "hasSubscription": false}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTrialStatus([]byte(payload))
			require.ErrorIs(t, err, ErrInvalidStatus)
		})
	}
}

func TestDecodeTrialStatusSubscribedToleratesTrialFields(t *testing.T) {
	s, err := DecodeTrialStatus([]byte(`{"isTrialActive": true, "daysLeft": 4, "trialEndDate": "2026-01-19T09:30:00Z", "hasSubscription": true}`))
	require.NoError(t, err)
	require.Equal(t, Hidden, StateOf(s))
}
