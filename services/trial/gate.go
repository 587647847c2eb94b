package trial

import "time"

const day = 24 * time.Hour

// Compute derives the trial status at now. A subscription that started at or
// before now wins; otherwise the trial runs for TrialLength from CreatedAt and
// daysLeft counts partial days as whole ones.
func Compute(f Facts, now time.Time) TrialStatus {
	end := f.CreatedAt.Add(f.TrialLength).UTC()

	if f.Subscribed && (f.SubscribedAt == nil || !now.Before(*f.SubscribedAt)) {
		return TrialStatus{
			HasSubscription: true,
			TrialEndDate:    end,
		}
	}

	remaining := end.Sub(now)
	if remaining <= 0 {
		return TrialStatus{TrialEndDate: end}
	}

	return TrialStatus{
		IsTrialActive: true,
		DaysLeft:      int((remaining + day - 1) / day),
		TrialEndDate:  end,
	}
}

// StateOf maps a status to the UI state. A subscription hides everything.
func StateOf(s TrialStatus) State {
	switch {
	case s.HasSubscription:
		return Hidden
	case s.IsTrialActive:
		return ActiveTrial
	default:
		return Expired
	}
}
