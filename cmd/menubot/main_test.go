package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/menubot/internal/config"
)

var cliEnv = []string{
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_AGE_DAYS",
	"PORT", "WEBHOOK_PATH", "WHATSAPP_VERIFY_TOKEN", "APP_SECRET", config.LegacyAppSecretEnv, "WEBHOOK_MAX_BODY_SIZE",
	"WHATSAPP_ACCESS_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_API_VERSION", "WHATSAPP_BASE_URL",
	"TEST_MODE", "WHATSAPP_TIMEOUT", "WHATSAPP_SEND_RATE",
	"CLINIC_NAME", "CLINIC_ADDRESS", "CLINIC_HOURS",
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range cliEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func runCaptured(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int {
		return runCLI(args)
	})
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `service:
  log_level: error
webhook:
  port: 3999
  verify_token: verify-token-value
  app_secret: super-secret-value
whatsapp:
  test_mode: true
clinic:
  name: Clínica Prueba
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRunCLI_Usage(t *testing.T) {
	code, stdout, _ := runCaptured(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Usage:")

	code, stdout, _ = runCaptured(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "config lock")

	code, _, stderr := runCaptured(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: bogus")
}

func TestRunVersion_JSON(t *testing.T) {
	code, stdout, _ := runCaptured(t, "version", "--json")
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, version, info.Version)
	assert.NotEmpty(t, info.Commit)

	code, _, _ = runCaptured(t, "version", "extra")
	assert.Equal(t, 1, code)
}

func TestNormalizeBuildTimeUTC(t *testing.T) {
	got, ok := normalizeBuildTimeUTC("2026-03-01T10:00:00+02:00")
	require.True(t, ok)
	assert.Equal(t, "2026-03-01T08:00:00Z", got)

	_, ok = normalizeBuildTimeUTC("unknown")
	assert.False(t, ok)
	_, ok = normalizeBuildTimeUTC("yesterday")
	assert.False(t, ok)

	assert.Equal(t, "abcdef123456", shortenCommit("abcdef1234567890"))
	assert.Equal(t, "abc", shortenCommit("abc"))
}

func TestConfigCheck(t *testing.T) {
	isolateEnv(t)
	path := writeTestConfig(t)

	code, stdout, stderr := runCaptured(t, "config", "check", "--config", path)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Configuration valid")
	assert.Contains(t, stdout, ":3999")
	assert.Contains(t, stdout, "****alue")
	assert.NotContains(t, stdout, "super-secret-value")
	assert.NotContains(t, stdout, "verify-token-value")
	assert.Contains(t, stdout, "Clínica Prueba")
	assert.Contains(t, stdout, "menubot")
}

func TestLogOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.Service.LogFile = "/var/log/menubot.log"
	cfg.Service.LogMaxSizeMB = 25
	cfg.Service.LogMaxAgeDays = 14

	opts := logOptions(cfg)
	assert.Equal(t, "info", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "/var/log/menubot.log", opts.File)
	assert.Equal(t, 25, opts.FileMaxSizeMB)
	assert.Equal(t, 14, opts.FileMaxAgeDays)
}

func TestConfigCheck_MissingCredentials(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("webhook:\n  port: 3000\n"), 0600))

	code, _, stderr := runCaptured(t, "config", "check", "--config", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "access_token")
}

func TestConfigLock_ThenTamper(t *testing.T) {
	isolateEnv(t)
	path := writeTestConfig(t)

	code, stdout, stderr := runCaptured(t, "config", "lock", "--config", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, config.ChecksumFile)

	code, _, _ = runCaptured(t, "config", "check", "--config", path)
	require.Equal(t, 0, code)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("# edited\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	code, _, stderr = runCaptured(t, "config", "check", "--config", path)
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, stderr)
}

func TestConfigLock_RequiresPath(t *testing.T) {
	code, _, stderr := runCaptured(t, "config", "lock")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--config is required")
}

func TestConfigNoun_Unknown(t *testing.T) {
	code, _, stderr := runCaptured(t, "config", "explode")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown config action")

	code, stdout, _ := runCaptured(t, "config", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "check, lock")
}

func TestSend_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing recipient", args: []string{"send", "--text", "hola"}, want: "--to is required"},
		{name: "no content", args: []string{"send", "--to", "521"}, want: "exactly one of"},
		{name: "both contents", args: []string{"send", "--to", "521", "--text", "a", "--menu", "menu"}, want: "exactly one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCaptured(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestSend_TestModeSuppresses(t *testing.T) {
	isolateEnv(t)
	path := writeTestConfig(t)

	code, stdout, stderr := runCaptured(t, "send", "--config", path, "--to", "5215550001111", "--text", "hola")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "suppressed (test mode): suppressed-")

	code, stdout, stderr = runCaptured(t, "send", "--config", path, "--to", "5215550001111", "--menu", "2")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "step: pain")
	assert.True(t, strings.Contains(stdout, "suppressed"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(unset)", maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "****6789", maskSecret("0123456789"))
}
