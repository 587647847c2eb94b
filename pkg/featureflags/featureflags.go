package featureflags

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"smallbiznis-crm/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag, ProvideTrialLength))

// TrialLengthFeature holds a per-tenant trial length in days, e.g. for extended trials.
const TrialLengthFeature = "trial_length_days"

var ErrDisabled = errors.New("feature flags are not configured")

type FeatureFlag interface {
	Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error) {
	if s.client == nil {
		return flagsmith.Flags{}, ErrDisabled
	}

	var traitSlice []*flagsmith.Trait
	if len(traits) > 0 {
		traitSlice = traits
	}

	return s.client.GetIdentityFlags(identifier, traitSlice)
}

// TrialLength adapts a FeatureFlag to the trial length override the gate consults.
type TrialLength struct {
	Flags FeatureFlag
}

func ProvideTrialLength(ff FeatureFlag) *TrialLength {
	return &TrialLength{Flags: ff}
}

// TrialLengthDays returns the tenant's trial length override when the feature is enabled
// and carries a positive integer value.
func (t *TrialLength) TrialLengthDays(ctx context.Context, tenantID string) (int, bool) {
	if t == nil || t.Flags == nil {
		return 0, false
	}

	flags, err := t.Flags.Flags(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			zap.L().Warn("failed to fetch feature flags", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return 0, false
	}

	enabled, err := flags.IsFeatureEnabled(TrialLengthFeature)
	if err != nil || !enabled {
		return 0, false
	}

	value, err := flags.GetFeatureValue(TrialLengthFeature)
	if err != nil {
		return 0, false
	}

	days, err := parseDays(value)
	if err != nil {
		zap.L().Warn("invalid trial length override", zap.String("tenant_id", tenantID), zap.Any("value", value))
		return 0, false
	}

	return days, true
}

func parseDays(value any) (int, error) {
	var days int
	switch v := value.(type) {
	case float64:
		days = int(v)
	case int:
		days = v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, err
		}
		days = n
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
	if days <= 0 {
		return 0, fmt.Errorf("trial length must be positive, got %d", days)
	}
	return days, nil
}
