package tenant

import (
	"context"
	"strings"
	"time"

	"smallbiznis-crm/pkg/db/option"
	"smallbiznis-crm/pkg/db/pagination"
	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Tenant]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Tenant](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Service) CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	zapLog := logger(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errutil.BadRequest("name is required", nil)
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(name)
	} else {
		slugName = slug.Make(slugName)
	}
	if slugName == "" {
		return nil, errutil.BadRequest("slug is invalid", nil)
	}

	exist, err := s.repo.FindOne(ctx, &Tenant{
		Slug: slugName,
	})
	if err != nil {
		zapLog.Error("failed query get tenant by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing tenant", err)
	}

	if exist != nil {
		zapLog.Warn("tenant already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("tenant already exists", nil)
	}

	tenantType := TenantType(req.Type)
	if tenantType.String() == "" {
		tenantType = Company
	}

	tenant := &Tenant{
		ID:           s.node.Generate().String(),
		Type:         tenantType,
		Name:         name,
		Slug:         slugName,
		BillingEmail: strings.TrimSpace(req.BillingEmail),
		CountryCode:  req.CountryCode,
		Timezone:     req.Timezone,
		Status:       Active,
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		zapLog.Error("failed to create tenant", zap.Error(err))
		return nil, errutil.Internal("failed to create tenant", err)
	}

	zapLog.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("slug", slugName))

	return tenant, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	zapLog := logger(ctx)

	if strings.TrimSpace(tenantID) == "" {
		return nil, errutil.BadRequest("tenant_id is required", nil)
	}

	tenant, err := s.repo.FindOne(ctx, &Tenant{
		ID: tenantID,
	})
	if err != nil {
		zapLog.Error("failed query get tenant by id", zap.Error(err))
		return nil, errutil.Internal("failed to get tenant", err)
	}

	if tenant == nil {
		zapLog.Warn("failed get tenant, tenant not found", zap.String("tenant_id", tenantID))
		return nil, errutil.NotFound("tenant not found", nil)
	}

	return tenant, nil
}

// ListCreatedSince pages through active tenants that signed up at or after since,
// i.e. the ones that can still be inside their trial window.
func (s *Service) ListCreatedSince(ctx context.Context, since time.Time, page pagination.Pagination) ([]*Tenant, *pagination.PageInfo, error) {
	page = page.Normalize()

	tenants, err := s.repo.Find(ctx, &Tenant{Status: Active},
		option.WithWhere("created_at >= ?", since),
		option.ApplyPagination(page),
	)
	if err != nil {
		logger(ctx).Error("failed to list tenants", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list tenants", err)
	}

	return pagination.BuildCursorPageInfo(tenants, page.Limit, func(t *Tenant) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
}
