package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, Initialize())
	t.Cleanup(ResetForTesting)

	s := Load()
	assert.Equal(t, DefaultSettings(), s)
	assert.Empty(t, ProjectFile())
	assert.Equal(t, "{kind}/{id}-{slug}", s.BranchTemplate())
}

func TestLoadBeforeInitialize(t *testing.T) {
	ResetForTesting()
	assert.Equal(t, DefaultSettings(), Load())
	assert.Empty(t, GetString("tracker"))
	assert.False(t, GetBool("exclusive"))
}

func TestProjectConfigDiscovery(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, ProjectPath(root), `
tracker: Pivotal
integration-branch: develop
exclusive: true
templates:
  branch: "{type}/{id}"
  merge: "[finish {key}] {title}"
pivotal:
  project-id: 99
`)
	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	require.NoError(t, Initialize())
	t.Cleanup(ResetForTesting)

	assert.Equal(t, "develop", Load().IntegrationBranch)
	s := Load()
	assert.Equal(t, "pivotal", s.Tracker)
	assert.True(t, s.Exclusive)
	assert.Equal(t, "origin", s.Remote)
	assert.Equal(t, "{type}/{id}", s.Templates.Branch)
	assert.Equal(t, "[finish {key}] {title}", s.Templates.Merge)
	assert.Equal(t, "99", Store{}.GetString("pivotal.project-id"))
	assert.Equal(t, "99", Store{}.AllStrings()["pivotal.project-id"])

	wantPath, err := filepath.EvalSymlinks(ProjectPath(root))
	require.NoError(t, err)
	gotPath, err := filepath.EvalSymlinks(ProjectFile())
	require.NoError(t, err)
	assert.Equal(t, wantPath, gotPath)
}

func TestUserConfigIsOverriddenByProject(t *testing.T) {
	root := t.TempDir()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeConfig(t, filepath.Join(xdg, "continuity", FileName), "github:\n  token: user-token\nremote: upstream\n")
	writeConfig(t, ProjectPath(root), "tracker: github\nremote: origin\n")
	t.Chdir(root)

	require.NoError(t, Initialize())
	t.Cleanup(ResetForTesting)

	assert.Equal(t, "user-token", GetString("github.token"))
	assert.Equal(t, "origin", Load().Remote)
	assert.NotEmpty(t, UserFile())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONTINUITY_TRACKER", "jira")
	t.Setenv("CONTINUITY_INTEGRATION_BRANCH", "trunk")
	t.Setenv("CONTINUITY_COMMENTS", "false")

	require.NoError(t, Initialize())
	t.Cleanup(ResetForTesting)

	s := Load()
	assert.Equal(t, "jira", s.Tracker)
	assert.Equal(t, "trunk", s.IntegrationBranch)
	assert.False(t, s.Comments)
}

func TestDotEnv(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, ProjectPath(root), "tracker: jira\n")
	writeConfig(t, filepath.Join(root, ".env"), "CONTINUITY_TEST_DOTENV=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("CONTINUITY_TEST_DOTENV") })
	t.Chdir(root)

	require.NoError(t, Initialize())
	t.Cleanup(ResetForTesting)
	assert.Equal(t, "from-dotenv", os.Getenv("CONTINUITY_TEST_DOTENV"))
}

func TestSet(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, Initialize())
	t.Cleanup(ResetForTesting)

	Set("remote", "fork")
	assert.Equal(t, "fork", Load().Remote)
	assert.True(t, IsSet("remote"))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), DirName, FileName)
	writeConfig(t, path, "# continuity settings\ntracker: github\ncustom: kept # note\ngithub:\n  owner: acme\n")

	err := Save(path, map[string]string{
		"tracker":                "jira",
		"exclusive":              "true",
		"jira.url":               "https://example.atlassian.net",
		"jira.transitions.start": "11",
		"github.repo":            "widgets",
		"templates.commit":       "{key}: ",
	}, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# continuity settings")
	assert.Contains(t, text, "custom: kept # note")

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "jira", got["tracker"])
	assert.Equal(t, true, got["exclusive"])
	assert.Equal(t, map[string]interface{}{"owner": "acme", "repo": "widgets"}, got["github"])
	jira := got["jira"].(map[string]interface{})
	assert.Equal(t, "https://example.atlassian.net", jira["url"])
	assert.Equal(t, map[string]interface{}{"start": 11}, jira["transitions"])
	assert.Equal(t, "{key}: ", got["templates"].(map[string]interface{})["commit"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeConfig(t, path, "tracker: github\nstale: value\n")

	require.NoError(t, Save(path, map[string]string{"tracker": "pivotal"}, true))
	var got map[string]interface{}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, map[string]interface{}{"tracker": "pivotal"}, got)
}

func TestSaveRejectsScalarParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeConfig(t, path, "github: yes\n")
	err := Save(path, map[string]string{"github.token": "x"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github.token")
}

func TestSplitSecrets(t *testing.T) {
	public, secret := SplitSecrets(map[string]string{
		"tracker": "github", "github.token": "t", "github.owner": "acme",
	})
	assert.Equal(t, map[string]string{"tracker": "github", "github.owner": "acme"}, public)
	assert.Equal(t, map[string]string{"github.token": "t"}, secret)
}

func TestWarnings(t *testing.T) {
	assert.Empty(t, DefaultSettings().Warnings())

	s := DefaultSettings()
	s.Templates.Branch = "feature/{slug}"
	s.Templates.PRTitle = "{ticket}: {title}"
	warnings := s.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "{ticket}")
	assert.Contains(t, warnings[1], "no {id} token")
}
