package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notargets/slipinv/bem"
	"github.com/notargets/slipinv/inversion"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings(viper.New())
	require.NoError(t, err)
	assert.Equal(t, inversion.DefaultConfig(), s.Inversion)
	assert.Equal(t, bem.DefaultConfig(), s.BEM)
	assert.Equal(t, 20, s.Mesh.NSurf)
	assert.Equal(t, 4, s.Mesh.NFault)
}

func TestLoadSettingsOverrides(t *testing.T) {
	v := viper.New()
	v.Set("log_level", "debug")
	v.Set("preconditioner", "jacobi")
	v.Set("reg_param", 0.1)
	v.Set("which_dims", []int{2})
	v.Set("penalty.stages", 3)
	v.Set("penalty.tol_decay", 100.)
	v.Set("n_surf", 10)
	v.Set("poisson_ratio", 0.3)

	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, s.Inversion.LogLevel)
	assert.Equal(t, bem.PreconJacobi, s.BEM.Preconditioner)
	assert.Equal(t, 0.1, s.Inversion.RegParam)
	assert.Equal(t, []int{2}, s.Inversion.WhichDims)
	assert.Equal(t, 3, s.Inversion.Penalty.Stages)
	assert.Equal(t, 100., s.Inversion.Penalty.TolDecay)
	assert.Equal(t, 0.3, s.BEM.PoissonRatio)
	assert.Equal(t, 2, s.Mesh.NFault)
}

func TestLoadSettingsEnvironment(t *testing.T) {
	t.Setenv("SLIPINV_REG_PARAM", "0.5")
	t.Setenv("SLIPINV_PENALTY_STAGES", "7")
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.Inversion.RegParam)
	assert.Equal(t, 7, s.Inversion.Penalty.Stages)
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		key    string
		val    any
		target error
	}{
		{"log_level", "loud", inversion.ErrInvalidConfig},
		{"preconditioner", "magic", bem.ErrInvalidConfig},
		{"reg_param", -1., inversion.ErrInvalidConfig},
		{"penalty.weight_growth", 0.5, inversion.ErrInvalidConfig},
		{"poisson_ratio", 0.5, bem.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := loadSettings(v)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	small := []string{"--n_surf", "4", "--n_fault", "2", "--surf_width", "3", "--log_level", "error"}
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, small...))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestInvertCommand(t *testing.T) {
	out := run(t, "invert")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "vertex"))
}

func TestPenaltyCommand(t *testing.T) {
	out := run(t, "penalty", "--penalty.stages", "2")
	assert.Contains(t, out, "stage 0:")
	assert.Contains(t, out, "stage 1:")
	assert.NotContains(t, out, "stage 2:")
	assert.Contains(t, out, "vertex")
}

func TestAdjointCommand(t *testing.T) {
	out := run(t, "adjoint-check", "--trials", "5")
	assert.Contains(t, out, "trials=5")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"adjoint-check", "--trials", "0", "--n_surf", "4", "--n_fault", "2",
		"--surf_width", "3", "--log_level", "error"})
	assert.ErrorIs(t, root.Execute(), inversion.ErrInvalidConfig)
}

func TestGreensCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfs.zst")
	out := run(t, "greens", "--out", path)
	assert.Contains(t, out, "x 18 slip dofs")

	out = run(t, "greens", "--compare", path)
	assert.Contains(t, out, "difference to "+path+": 0.000e+00")
}
