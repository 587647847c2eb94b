package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/db/pagination"
	"smallbiznis-crm/pkg/mailer"
	"smallbiznis-crm/pkg/rediskey"
	"smallbiznis-crm/pkg/repository"
	"smallbiznis-crm/pkg/task"
	"smallbiznis-crm/pkg/taskname"
	"smallbiznis-crm/services/tenant"
	"smallbiznis-crm/services/trial"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lookback bounds the tenant scan; trials longer than this get no reminders.
const lookback = 90 * 24 * time.Hour

const (
	pageSize    = 250
	concurrency = 8
)

type TenantSource interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
	ListCreatedSince(ctx context.Context, since time.Time, page pagination.Pagination) ([]*tenant.Tenant, *pagination.PageInfo, error)
}

type StatusResolver interface {
	Status(ctx context.Context, tenantID string) (trial.TrialStatus, error)
	Pricing() trial.Pricing
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	repo      repository.Repository[Reminder]
	tenants   TenantSource
	trials    StatusResolver
	enqueuer  task.Enqueuer
	mailer    mailer.Mailer
	days      []int
	appURL    string
	subscribe string
	now       func() time.Time
}

type Params struct {
	fx.In
	Config   *config.Config
	DB       *gorm.DB
	Node     *snowflake.Node
	Tenants  *tenant.Service
	Trials   *trial.Service
	Enqueuer task.Enqueuer
	Mailer   mailer.Mailer
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		repo:      repository.ProvideStore[Reminder](p.DB),
		tenants:   p.Tenants,
		trials:    p.Trials,
		enqueuer:  p.Enqueuer,
		mailer:    p.Mailer,
		days:      p.Config.Trial.ReminderDays,
		appURL:    strings.TrimRight(p.Config.AppURL, "/"),
		subscribe: p.Config.Trial.SubscribeURL,
		now:       time.Now,
	}
}

// EnqueueDue enqueues a reminder for every trialing tenant whose daysLeft is a reminder day.
// It returns how many tasks were enqueued.
func (s *Service) EnqueueDue(ctx context.Context) (int, error) {
	if len(s.days) == 0 {
		return 0, nil
	}

	since := s.now().Add(-lookback)
	page := pagination.Pagination{Limit: pageSize}
	var enqueued atomic.Int64
	total := 0

	for {
		tenants, info, err := s.tenants.ListCreatedSince(ctx, since, page)
		if err != nil {
			return int(enqueued.Load()), err
		}
		total += len(tenants)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, t := range tenants {
			tenantID := t.ID
			g.Go(func() error {
				ok, err := s.enqueueTenant(gctx, tenantID)
				if err != nil {
					// one tenant must not stop the batch
					zap.L().Error("failed enqueue trial reminder", zap.String("tenant_id", tenantID), zap.Error(err))
					return nil
				}
				if ok {
					enqueued.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if info == nil || !info.HasMore {
			break
		}
		page.Cursor = info.NextCursor
	}

	zap.L().Info("finished enqueue trial reminders",
		zap.Int("scanned_tenants", total),
		zap.Int64("enqueued", enqueued.Load()),
	)
	return int(enqueued.Load()), nil
}

func (s *Service) enqueueTenant(ctx context.Context, tenantID string) (bool, error) {
	status, err := s.trials.Status(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if trial.StateOf(status) != trial.ActiveTrial || !slices.Contains(s.days, status.DaysLeft) {
		return false, nil
	}

	payload, err := json.Marshal(Payload{TenantID: tenantID, DaysLeft: status.DaysLeft})
	if err != nil {
		return false, err
	}

	_, err = s.enqueuer.Enqueue(ctx, asynq.NewTask(taskname.TrialReminder, payload),
		asynq.TaskID(rediskey.BuildReminderKey(tenantID, status.DaysLeft)),
		asynq.Queue(task.QueueDefault),
		asynq.MaxRetry(5),
		asynq.Retention(48*time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return false, nil
		}
		return false, err
	}

	zap.L().Info("enqueued trial reminder", zap.String("tenant_id", tenantID), zap.Int("days_left", status.DaysLeft))
	return true, nil
}

// HandleReminder is the asynq handler for trial:reminder. The gate is recomputed
// because the tenant may have subscribed since the task was queued.
func (s *Service) HandleReminder(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		zap.L().Error("invalid trial reminder payload", zap.Error(err))
		return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
	}

	zapLog := zap.L().With(zap.String("tenant_id", p.TenantID), zap.Int("days_left", p.DaysLeft))

	existing, err := s.repo.FindOne(ctx, &Reminder{TenantID: p.TenantID, DaysLeft: p.DaysLeft})
	if err != nil {
		return err
	}
	if existing != nil {
		zapLog.Info("trial reminder already handled", zap.String("status", string(existing.Status)))
		return nil
	}

	status, err := s.trials.Status(ctx, p.TenantID)
	if err != nil {
		return err
	}
	if trial.StateOf(status) != trial.ActiveTrial {
		return s.record(ctx, p, StatusSkipped, "tenant is no longer trialing")
	}
	if status.DaysLeft != p.DaysLeft {
		// the next scan enqueues the reminder for the current day count
		zapLog.Info("trial reminder is out of date", zap.Int("current_days_left", status.DaysLeft))
		return s.record(ctx, p, StatusSkipped, "days left changed")
	}

	owner, err := s.tenants.GetTenant(ctx, p.TenantID)
	if err != nil {
		return err
	}
	if owner.BillingEmail == "" {
		return s.record(ctx, p, StatusSkipped, "tenant has no billing email")
	}

	msg := s.compose(owner, status)
	if err := s.mailer.Send(ctx, msg); err != nil {
		zapLog.Error("failed to send trial reminder", zap.Error(err))
		return err
	}

	zapLog.Info("trial reminder sent")
	return s.record(ctx, p, StatusSent, "")
}

func (s *Service) compose(t *tenant.Tenant, status trial.TrialStatus) mailer.Message {
	banner := trial.RenderBanner(status, s.trials.Pricing(), s.appURL+s.subscribe)

	subject := fmt.Sprintf("Your free trial ends in %d days", status.DaysLeft)
	if status.DaysLeft == 1 {
		subject = "Your free trial ends tomorrow"
	}

	text := fmt.Sprintf("Hi %s,\n\n%s.\n\nSubscribe here: %s\n", t.Name, banner.Message, banner.SubscribeURL)
	body := fmt.Sprintf(`<p>Hi %s,</p><p>%s.</p><p><a href="%s">Subscribe now</a></p>`,
		html.EscapeString(t.Name), html.EscapeString(banner.Message), html.EscapeString(banner.SubscribeURL))

	return mailer.Message{
		To:      t.BillingEmail,
		Subject: subject,
		Text:    text,
		HTML:    body,
	}
}

func (s *Service) record(ctx context.Context, p Payload, status Status, reason string) error {
	r := &Reminder{
		ID:       s.node.Generate().String(),
		TenantID: p.TenantID,
		DaysLeft: p.DaysLeft,
		Status:   status,
		Reason:   reason,
	}
	if status == StatusSent {
		now := s.now().UTC()
		r.SentAt = &now
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(r).Error
}
