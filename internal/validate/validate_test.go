package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexr72/wpcv/internal/config"
)

type stubValidator struct {
	findings []Finding
	err      error
	seen     Input
}

func (s *stubValidator) Validate(_ context.Context, input Input) ([]Finding, error) {
	s.seen = input
	return s.findings, s.err
}

func TestDefaultPipeline_ReportsEveryCheck(t *testing.T) {
	report := DefaultPipeline().Run(context.Background(), Input{Path: "a.go", Code: "package a"})

	require.Len(t, report.Checks, 3)
	require.Equal(t, CheckSyntax, report.Checks[0].Name)
	require.Equal(t, CheckLint, report.Checks[1].Name)
	require.Equal(t, CheckExpectations, report.Checks[2].Name)
	for _, c := range report.Checks {
		require.NotNil(t, c.Findings, "a check that ran must report an empty list, not nil")
		require.Empty(t, c.Findings)
	}
	require.True(t, report.Clean())
}

func TestPipeline_CollectsFindingsAndErrors(t *testing.T) {
	lint := &stubValidator{findings: []Finding{{Message: "unused variable", Line: 3}}}
	expectations := &stubValidator{err: errors.New("rules unreadable")}

	pipeline := NewPipeline(nil, lint, expectations)
	input := Input{Path: "b.go", Code: "x := 1", Expectations: []string{"No hardcoded credentials"}}

	report := pipeline.Run(context.Background(), input)

	require.False(t, report.Clean())
	require.Equal(t, []Finding{{Check: CheckLint, Message: "unused variable", Line: 3}}, report.Findings())
	require.Equal(t, "rules unreadable", report.Checks[2].Err)
	require.Equal(t, input.Expectations, expectations.seen.Expectations)
}

func TestLoadExpectations_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expectations.md")
	require.NoError(t, os.WriteFile(path, []byte("# Rules\n\n  - one  \n\t\n- two\n"), 0o644))

	got, err := LoadExpectations(path)
	require.NoError(t, err)
	require.Equal(t, []string{"# Rules", "- one", "- two"}, got)
}

func TestLoadExpectations_YAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "list", content: "- a\n- b\n", want: []string{"a", "b"}},
		{name: "expectations key", content: "expectations:\n  - a\n", want: []string{"a"}},
		{name: "sections", content: "security:\n  - no secrets\nlogging:\n  - timestamps\n", want: []string{"security: no secrets", "logging: timestamps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := LoadExpectations(path)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadExpectations_YAMLScalarRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte("just a string\n"), 0o644))

	_, err := LoadExpectations(path)
	require.Error(t, err)
}

func TestScaffoldExpectations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "expectations.md")

	written, err := ScaffoldExpectations(path)
	require.NoError(t, err)
	require.True(t, written)

	rules, err := LoadExpectations(path)
	require.NoError(t, err)
	require.Contains(t, rules, "- No hardcoded credentials")

	written, err = ScaffoldExpectations(path)
	require.NoError(t, err)
	require.False(t, written)
}

func TestCheckEnvironment(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Agents = map[string]config.AgentConfig{
		"local":  {URL: "http://localhost:1234", APIKey: "NA"},
		"openai": {URL: "https://api.openai.com", APIKeyEnv: "WPCV_DOCTOR_UNSET_KEY"},
	}
	cfg.Doctor.Commands = []string{"wpcv-definitely-missing-command"}

	report := CheckEnvironment(cfg, filepath.Join(dir, "config.toml"))

	statuses := map[string]Status{}
	for _, c := range report.Checks {
		statuses[c.Kind+":"+c.Name] = c.Status
	}

	require.Equal(t, StatusOK, statuses["folder:"+dir])
	require.Equal(t, StatusCreated, statuses["folder:"+cfg.RevisionsDir()])
	require.DirExists(t, cfg.RevisionsDir())
	require.Equal(t, StatusFail, statuses["file:"+filepath.Join(dir, "config.toml")])
	require.Equal(t, StatusOK, statuses["agent:local"])
	require.Equal(t, StatusWarn, statuses["agent:openai"])
	require.Equal(t, StatusFail, statuses["command:wpcv-definitely-missing-command"])
	require.True(t, report.Failed())
}
