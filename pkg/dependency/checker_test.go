package dependency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvironment(t *testing.T) {
	deps := []Dependency{
		{Name: "shell", Command: "sh", Args: []string{"-c", "echo 'tool 1.2.3'; echo extra"}, Required: true},
		{Name: "ghost", Command: "definitely-not-installed-binary", Required: true, InstallCmd: "apt-get install ghost"},
		{Name: "extra", Command: "definitely-not-installed-either", Required: false},
	}

	report := ValidateEnvironment(context.Background(), NewChecker(5*time.Second), deps)

	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Available)
	assert.Equal(t, "tool 1.2.3", report.Results[0].Version)
	assert.False(t, report.Results[1].Available)
	assert.Equal(t, "apt-get install ghost", report.Results[1].InstallHint)

	assert.Equal(t, []string{"ghost"}, report.RequiredMissing)
	assert.Equal(t, []string{"extra"}, report.OptionalMissing)
	assert.Equal(t, "CRITICAL", report.Severity)
	assert.False(t, report.IsHealthy())
	assert.EqualError(t, report.Err(), "missing required dependencies: ghost")

	text := report.GenerateReport()
	assert.Contains(t, text, "shell: ✓ Available (Required)")
	assert.Contains(t, text, "ghost: ✗ Missing (Required)")
}

func TestValidateEnvironment_Healthy(t *testing.T) {
	deps := []Dependency{{Name: "true", Command: "true", Required: true}}

	report := ValidateEnvironment(context.Background(), NewChecker(5*time.Second), deps)
	assert.True(t, report.IsHealthy())
	assert.NoError(t, report.Err())
	assert.Equal(t, "OK", report.Severity)
}

func TestGetSystemDependencies(t *testing.T) {
	names := map[string]bool{}
	for _, dep := range GetSystemDependencies() {
		names[dep.Name] = dep.Required
	}
	assert.True(t, names["FFmpeg"])
	assert.True(t, names["yt-dlp"])
}
