package featureflags

import (
	"context"
	"errors"
	"testing"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type failingFlags struct{ err error }

func (f failingFlags) Flags(context.Context, string, ...*flagsmith.Trait) (flagsmith.Flags, error) {
	return flagsmith.Flags{}, f.err
}

func TestParseDays(t *testing.T) {
	cases := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{in: float64(30), want: 30},
		{in: 21, want: 21},
		{in: "45", want: 45},
		{in: "abc", wantErr: true},
		{in: 0, wantErr: true},
		{in: -3, wantErr: true},
		{in: true, wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseDays(tc.in)
		if tc.wantErr {
			require.Error(t, err, "input %v", tc.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestTrialLengthDisabled(t *testing.T) {
	tl := ProvideTrialLength(&featureflag{})
	_, ok := tl.TrialLengthDays(context.Background(), "tenant-1")
	require.False(t, ok)
}

func TestTrialLengthFetchError(t *testing.T) {
	tl := ProvideTrialLength(failingFlags{err: errors.New("timeout")})
	_, ok := tl.TrialLengthDays(context.Background(), "tenant-1")
	require.False(t, ok)
}

func TestTrialLengthNil(t *testing.T) {
	var tl *TrialLength
	_, ok := tl.TrialLengthDays(context.Background(), "tenant-1")
	require.False(t, ok)
}
