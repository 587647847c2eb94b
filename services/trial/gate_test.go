package trial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)

const fourteenDays = 14 * day

func trialFacts() Facts {
	return Facts{CreatedAt: t0, TrialLength: fourteenDays}
}

func TestComputeSubscribedIsHidden(t *testing.T) {
	f := trialFacts()
	f.Subscribed = true

	for _, offset := range []time.Duration{0, time.Hour, 13 * day, 14 * day, 400 * day} {
		s := Compute(f, t0.Add(offset))
		require.True(t, s.HasSubscription)
		require.False(t, s.IsTrialActive)
		require.Zero(t, s.DaysLeft)
		require.Equal(t, t0.Add(fourteenDays), s.TrialEndDate)
		require.Equal(t, Hidden, StateOf(s))
	}
}

func TestStateOfSubscriptionWins(t *testing.T) {
	s := TrialStatus{HasSubscription: true, IsTrialActive: true, DaysLeft: 5}
	require.Equal(t, Hidden, StateOf(s))
}

func TestComputeActiveTrialRoundsUp(t *testing.T) {
	end := t0.Add(fourteenDays)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "signup", now: t0, want: 14},
		{name: "one second in", now: t0.Add(time.Second), want: 14},
		{name: "exactly one day in", now: t0.Add(day), want: 13},
		{name: "last second", now: end.Add(-time.Second), want: 1},
		{name: "thirteen and a half days", now: t0.Add(13*day + 12*time.Hour), want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Compute(trialFacts(), tc.now)
			require.True(t, s.IsTrialActive)
			require.False(t, s.HasSubscription)
			require.Equal(t, tc.want, s.DaysLeft)
			require.GreaterOrEqual(t, s.DaysLeft, 1)
			require.Equal(t, end, s.TrialEndDate)
			require.Equal(t, ActiveTrial, StateOf(s))
		})
	}
}

func TestComputeExpired(t *testing.T) {
	end := t0.Add(fourteenDays)

	for _, now := range []time.Time{end, end.Add(time.Nanosecond), t0.Add(15 * day), end.Add(365 * day)} {
		s := Compute(trialFacts(), now)
		require.False(t, s.IsTrialActive)
		require.False(t, s.HasSubscription)
		require.Zero(t, s.DaysLeft)
		require.Equal(t, Expired, StateOf(s))
	}
}

func TestComputeIdempotent(t *testing.T) {
	now := t0.Add(3*day + 7*time.Minute)
	require.Equal(t, Compute(trialFacts(), now), Compute(trialFacts(), now))
}

func TestComputeClockSkew(t *testing.T) {
	// a clock behind signup still yields a bounded countdown
	s := Compute(trialFacts(), t0.Add(-2*time.Hour))
	require.True(t, s.IsTrialActive)
	require.Equal(t, 15, s.DaysLeft)
}

func TestComputeSubscribedMidTrial(t *testing.T) {
	subscribedAt := t0.Add(5 * day)
	f := trialFacts()
	f.Subscribed = true
	f.SubscribedAt = &subscribedAt

	require.Equal(t, ActiveTrial, StateOf(Compute(f, t0.Add(4*day))))

	for _, now := range []time.Time{subscribedAt, t0.Add(6 * day), t0.Add(13 * day), t0.Add(30 * day)} {
		require.Equal(t, Hidden, StateOf(Compute(f, now)))
	}
}

func TestComputeNormalisesToUTC(t *testing.T) {
	kl := time.FixedZone("MYT", 8*60*60)
	f := Facts{CreatedAt: t0.In(kl), TrialLength: fourteenDays}

	s := Compute(f, t0)
	require.Equal(t, time.UTC, s.TrialEndDate.Location())
	require.True(t, s.TrialEndDate.Equal(t0.Add(fourteenDays)))
}
