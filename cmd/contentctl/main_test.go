package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	root       string
	localesDir string
	backupDir  string
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		root:       root,
		localesDir: filepath.Join(root, "locales"),
		backupDir:  filepath.Join(root, "backups"),
	}
	t.Setenv("LOCALES_DIR", env.localesDir)
	t.Setenv("BACKUP_DIR", env.backupDir)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_PATH", filepath.Join(root, "data", "site.db"))
	t.Setenv("STATIC_DIR", filepath.Join(root, "static"))
	t.Setenv("SUPER_ROOT_USER_NAME", "")
	t.Setenv("SUPER_ROOT_PASSWORD", "")
	t.Setenv("DATABASE_URL", "")
	return env
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func runJSON(t *testing.T, dst any, args ...string) {
	t.Helper()
	out, _, err := run(t, append([]string{"--json"}, args...)...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), dst), "output: %s", out)
}

func TestInitWritesDefaultsOnce(t *testing.T) {
	env := setupEnv(t)

	var first struct {
		Written []string `json:"written"`
	}
	runJSON(t, &first, "init")
	assert.Len(t, first.Written, 2)
	assert.FileExists(t, filepath.Join(env.localesDir, "en.json"))
	assert.FileExists(t, filepath.Join(env.localesDir, "ar.json"))

	var second struct {
		Written []string `json:"written"`
	}
	runJSON(t, &second, "init")
	assert.Empty(t, second.Written)

	var forced struct {
		Written []string `json:"written"`
	}
	runJSON(t, &forced, "init", "--force")
	assert.Len(t, forced.Written, 2)
}

func TestFAQEditsKeepLocalesAligned(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "init")
	require.NoError(t, err)

	var before []map[string]string
	runJSON(t, &before, "faq", "list", "--locale", "ar")
	require.Len(t, before, 2)

	out, _, err := run(t, "faq", "add", "--question", "Do braces hurt?", "--answer", "Only a **little** at first.")
	require.NoError(t, err)
	assert.Contains(t, out, "saved 3 questions per locale")

	var en, ar []map[string]string
	runJSON(t, &en, "faq", "list", "--locale", "en")
	runJSON(t, &ar, "faq", "list", "-l", "ar")
	require.Len(t, en, 3)
	require.Len(t, ar, 3)
	assert.Equal(t, "Do braces hurt?", en[2]["question"])
	assert.Equal(t, "Do braces hurt?", ar[2]["question"], "arabic falls back to the english question")

	_, _, err = run(t, "faq", "delete", "--index", "0")
	require.NoError(t, err)
	runJSON(t, &en, "faq", "list")
	runJSON(t, &ar, "faq", "list", "--locale", "ar")
	assert.Len(t, en, 2)
	assert.Len(t, ar, 2)
	assert.Equal(t, "Do braces hurt?", en[1]["question"])

	_, _, err = run(t, "faq", "delete", "--index", "9")
	assert.ErrorContains(t, err, "faq index out of range")
}

func TestFAQRequiresLocalFiles(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "faq", "list")
	assert.Error(t, err)

	_, _, err = run(t, "faq", "list", "--locale", "fr")
	assert.ErrorContains(t, err, `invalid locale "fr"`)
}

func TestBackupSnapshotsLocaleFiles(t *testing.T) {
	env := setupEnv(t)

	_, _, err := run(t, "backup")
	assert.Error(t, err, "nothing to snapshot yet")

	_, _, err = run(t, "init")
	require.NoError(t, err)

	var res map[string]string
	runJSON(t, &res, "backup")
	dest := res["snapshot"]
	require.NotEmpty(t, dest)
	assert.Equal(t, env.backupDir, filepath.Dir(dest))
	assert.FileExists(t, filepath.Join(dest, "en.json"))
	assert.FileExists(t, filepath.Join(dest, "ar.json"))
}

func TestPushResolvePull(t *testing.T) {
	env := setupEnv(t)

	var resolved map[string]any
	runJSON(t, &resolved, "resolve", "--locale", "ar")
	assert.Equal(t, "default", resolved["source"])
	assert.Equal(t, "en", resolved["locale"])

	_, _, err := run(t, "init")
	require.NoError(t, err)

	var plan map[string][]string
	runJSON(t, &plan, "push", "--dry-run")
	assert.Len(t, plan["en"], 8)
	assert.Contains(t, plan["ar"], "faq")

	out, _, err := run(t, "push")
	require.NoError(t, err)
	assert.Contains(t, out, "en: pushed 8 sections")
	assert.Contains(t, out, "ar: pushed 8 sections")

	runJSON(t, &resolved, "resolve", "--locale", "ar")
	assert.Equal(t, "remote", resolved["source"])
	assert.Equal(t, "ar", resolved["locale"])

	// 本地修改后 pull 应以存储内容覆盖并留下备份
	_, _, err = run(t, "faq", "add", "--question", "Local only?")
	require.NoError(t, err)

	var pulled struct {
		Backups map[string]string `json:"backups"`
	}
	runJSON(t, &pulled, "pull")
	require.Len(t, pulled.Backups, 2)
	assert.FileExists(t, pulled.Backups["en"])

	var en []map[string]string
	runJSON(t, &en, "faq", "list")
	assert.Len(t, en, 2)

	_, err = os.Stat(filepath.Join(env.root, "data", "site.db"))
	assert.NoError(t, err)
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	env := setupEnv(t)
	fromFile := filepath.Join(env.root, "from-file")
	fromFlag := filepath.Join(env.root, "from-flag")

	cfgPath := filepath.Join(env.root, "contentctl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("locales_dir: "+fromFile+"\n"), 0o644))

	_, _, err := run(t, "--config", cfgPath, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(fromFile, "en.json"))
	assert.NoFileExists(t, filepath.Join(env.localesDir, "en.json"))

	_, _, err = run(t, "--config", cfgPath, "--locales-dir", fromFlag, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(fromFlag, "ar.json"))

	_, _, err = run(t, "--config", filepath.Join(env.root, "nope.yaml"), "init")
	assert.ErrorContains(t, err, "read config")

	_, _, err = run(t, "--store", "mongo", "init")
	assert.Error(t, err)
}

func TestAdminSetPassword(t *testing.T) {
	setupEnv(t)

	out, _, err := run(t, "admin", "set-password", "--password", "first")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin admin")

	var res map[string]any
	runJSON(t, &res, "admin", "set-password", "-u", "admin", "-p", "second")
	assert.Equal(t, false, res["created"])

	_, _, err = run(t, "admin", "set-password")
	assert.Error(t, err, "password flag is required")
}
