package reminder

import (
	"smallbiznis-crm/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("reminder.service",
	fx.Provide(
		NewService,
		NewScheduler,
	),
	fx.Invoke(
		registerHandlers,
		StartScheduler,
	),
)

func registerHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.TrialReminder, svc.HandleReminder)
}
