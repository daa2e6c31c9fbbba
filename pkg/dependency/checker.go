package dependency

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Dependency represents an external binary the bot shells out to
type Dependency struct {
	Name        string
	Command     string
	Args        []string
	Required    bool
	Description string
	InstallCmd  string
}

// CheckResult represents the result of a dependency check
type CheckResult struct {
	Dependency  Dependency
	Available   bool
	Version     string
	Error       error
	InstallHint string
}

// Checker handles dependency checking
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a new dependency checker
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		timeout: timeout,
	}
}

// CheckAll checks every dependency
func (c *Checker) CheckAll(ctx context.Context, deps []Dependency) []CheckResult {
	results := make([]CheckResult, 0, len(deps))
	for _, dep := range deps {
		results = append(results, c.checkSingle(ctx, dep))
	}
	return results
}

// checkSingle runs the dependency's version command
func (c *Checker) checkSingle(ctx context.Context, dep Dependency) CheckResult {
	result := CheckResult{Dependency: dep}

	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, dep.Command, dep.Args...).Output()
	if err != nil {
		result.Error = err
		result.InstallHint = dep.InstallCmd
		return result
	}

	result.Available = true
	result.Version = firstLine(string(output))
	return result
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// GetSystemDependencies returns the binaries playback depends on
func GetSystemDependencies() []Dependency {
	return []Dependency{
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Args:        []string{"-version"},
			Required:    true,
			Description: "Transcodes the downloaded stream to Opus for voice playback",
			InstallCmd:  "brew install ffmpeg (macOS) | apt-get install ffmpeg (Ubuntu)",
		},
		{
			Name:        "yt-dlp",
			Command:     "yt-dlp",
			Args:        []string{"--version"},
			Required:    true,
			Description: "Resolves titles, searches and streams audio",
			InstallCmd:  "pip install yt-dlp | brew install yt-dlp",
		},
	}
}

// ValidateEnvironment checks deps (the system defaults when nil) and reports on them
func ValidateEnvironment(ctx context.Context, checker *Checker, deps []Dependency) *EnvironmentReport {
	if checker == nil {
		checker = NewChecker(10 * time.Second)
	}
	if deps == nil {
		deps = GetSystemDependencies()
	}

	report := &EnvironmentReport{
		CheckTime: time.Now(),
		Results:   checker.CheckAll(ctx, deps),
	}
	report.analyzeResults()
	return report
}

// EnvironmentReport contains the results of environment validation
type EnvironmentReport struct {
	CheckTime         time.Time
	Results           []CheckResult
	RequiredMissing   []string
	OptionalMissing   []string
	RecommendedAction string
	Severity          string
}

func (r *EnvironmentReport) analyzeResults() {
	r.RequiredMissing = nil
	r.OptionalMissing = nil
	for _, result := range r.Results {
		if result.Available {
			continue
		}
		if result.Dependency.Required {
			r.RequiredMissing = append(r.RequiredMissing, result.Dependency.Name)
		} else {
			r.OptionalMissing = append(r.OptionalMissing, result.Dependency.Name)
		}
	}

	switch {
	case len(r.RequiredMissing) > 0:
		r.Severity = "CRITICAL"
		r.RecommendedAction = "Install required dependencies before starting the bot"
	case len(r.OptionalMissing) > 0:
		r.Severity = "WARNING"
		r.RecommendedAction = "Consider installing optional dependencies for full functionality"
	default:
		r.Severity = "OK"
		r.RecommendedAction = "All dependencies are available"
	}
}

// IsHealthy returns true if all required dependencies are available
func (r *EnvironmentReport) IsHealthy() bool {
	return len(r.RequiredMissing) == 0
}

// Err returns an error naming the missing required dependencies, or nil
func (r *EnvironmentReport) Err() error {
	if r.IsHealthy() {
		return nil
	}
	return fmt.Errorf("missing required dependencies: %s", strings.Join(r.RequiredMissing, ", "))
}

// GenerateReport generates a human-readable report
func (r *EnvironmentReport) GenerateReport() string {
	var report strings.Builder

	report.WriteString("=== Environment Report ===\n")
	fmt.Fprintf(&report, "Check Time: %s\n", r.CheckTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&report, "Severity: %s\n", r.Severity)
	fmt.Fprintf(&report, "Recommended Action: %s\n\n", r.RecommendedAction)

	report.WriteString("Dependency Status:\n")
	for _, result := range r.Results {
		status := "✓ Available"
		if !result.Available {
			status = "✗ Missing"
		}
		required := ""
		if result.Dependency.Required {
			required = " (Required)"
		}

		fmt.Fprintf(&report, "  %s: %s%s\n", result.Dependency.Name, status, required)
		if result.Version != "" {
			fmt.Fprintf(&report, "    Version: %s\n", result.Version)
		}
		if result.Error != nil {
			fmt.Fprintf(&report, "    Error: %s\n", result.Error)
		}
		if result.InstallHint != "" {
			fmt.Fprintf(&report, "    Install: %s\n", result.InstallHint)
		}
	}

	return report.String()
}
