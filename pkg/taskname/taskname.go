package taskname

const (
	// Trial tasks
	TrialReminder = "trial:reminder"
)
