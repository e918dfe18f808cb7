package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/menubot/internal/config"
	"github.com/mattjoyce/menubot/internal/log"
	"github.com/mattjoyce/menubot/internal/menu"
	"github.com/mattjoyce/menubot/internal/webhook"
	"github.com/mattjoyce/menubot/internal/whatsapp"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		if hasHelpFlag(args) {
			printStartHelp()
			return 0
		}
		return runStart(args)
	case "config":
		return runConfigNoun(args)
	case "send":
		if hasHelpFlag(args) {
			printSendHelp()
			return 0
		}
		return runSend(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: menubot version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("menubot %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(built); ok {
		info.BuildTime = normalized
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`menubot - WhatsApp menu bot for a dental clinic

Usage:
  menubot <command> [flags]

Commands:
  start             Run the webhook server in the foreground
  send              Send one message through the configured account
  config check      Validate configuration and print a summary
  config lock       Record the config file hash in .checksums
  version           Show version information
  help              Show this help message

Configuration is read from --config (optional), then environment variables.
A .env file in the working directory is loaded when present.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printStartHelp() {
	fmt.Println("Usage: menubot start [--config PATH] [--env-file PATH]")
	fmt.Println("Run the webhook server until SIGINT or SIGTERM.")
}

func printSendHelp() {
	fmt.Println("Usage: menubot send --to NUMBER (--text TEXT | --menu INPUT) [--config PATH] [--env-file PATH]")
	fmt.Println("Send a text, or the menu reply for INPUT, to NUMBER.")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: menubot config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

// loadRuntimeConfig loads the env file and then the configuration.
func loadRuntimeConfig(configPath, envFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

func setupLogging(cfg *config.Config) {
	log.Setup(logOptions(cfg))
}

func logOptions(cfg *config.Config) log.Options {
	return log.Options{
		Level:          cfg.Service.LogLevel,
		Format:         cfg.Service.LogFormat,
		File:           cfg.Service.LogFile,
		FileMaxSizeMB:  cfg.Service.LogMaxSizeMB,
		FileMaxAgeDays: cfg.Service.LogMaxAgeDays,
	}
}

func newClient(cfg *config.Config) *whatsapp.Client {
	return whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		TestMode:      cfg.WhatsApp.TestMode,
		Timeout:       cfg.WhatsApp.Timeout,
		SendRate:      cfg.WhatsApp.SendRate,
	}, log.WithComponent("whatsapp"))
}

func newRouter(cfg *config.Config) *menu.Router {
	return menu.New(menu.Options{
		ClinicName: cfg.Clinic.Name,
		Address:    cfg.Clinic.Address,
		Hours:      cfg.Clinic.Hours,
	})
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	envFile := fs.String("env-file", "", "Path to a dotenv file (default: .env if present)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadRuntimeConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	setupLogging(cfg)
	logger := log.WithComponent("main").With("service", cfg.Service.Name)
	client := newClient(cfg)
	logger.Info("menubot starting", "version", version, "config", *configPath, "test_mode", client.TestMode())
	if client.TestMode() {
		logger.Warn("test mode enabled, replies are logged and not sent")
	}

	webhookConfig, err := webhook.FromGlobalConfig(cfg.Webhook)
	if err != nil {
		logger.Error("failed to configure webhook", "error", err)
		return 1
	}

	server := webhook.New(webhookConfig, client, newRouter(cfg), log.WithComponent("webhook"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("webhook: %w", err)
		}
	}()

	logger.Info("menubot running (press Ctrl+C to stop)", "listen", webhookConfig.Listen, "path", webhookConfig.Path)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		<-done
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("menubot stopped")
	return 0
}

func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	envFile := fs.String("env-file", "", "Path to a dotenv file (default: .env if present)")
	to := fs.String("to", "", "Recipient phone number")
	text := fs.String("text", "", "Plain text to send")
	menuInput := fs.String("menu", "", "Send the menu reply for this input")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *to == "" {
		fmt.Fprintln(os.Stderr, "Error: --to is required")
		return 1
	}
	if (*text == "") == (*menuInput == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --text or --menu is required")
		return 1
	}

	cfg, err := loadRuntimeConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	setupLogging(cfg)

	client := newClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.WhatsApp.Timeout+5*time.Second)
	defer cancel()

	var result *whatsapp.SendResult
	if *text != "" {
		result, err = client.SendText(ctx, *to, *text)
	} else {
		reply, step := newRouter(cfg).Resolve(*menuInput)
		fmt.Printf("step: %s\n", step)
		if reply.Kind == menu.ReplyButtons {
			result, err = client.SendButtons(ctx, *to, reply.Body, reply.Buttons)
		} else {
			result, err = client.SendText(ctx, *to, reply.Body)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		return 1
	}

	if result.Suppressed {
		fmt.Printf("suppressed (test mode): %s\n", result.MessageID)
		return 0
	}
	fmt.Printf("sent: %s\n", result.MessageID)
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: menubot config check [--config PATH] [--env-file PATH]")
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: menubot config lock --config PATH")
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	envFile := fs.String("env-file", "", "Path to a dotenv file (default: .env if present)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadRuntimeConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	webhookConfig, err := webhook.FromGlobalConfig(cfg.Webhook)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	fmt.Println("Configuration valid")
	fmt.Printf("  service:         %s\n", cfg.Service.Name)
	fmt.Printf("  listen:          %s\n", webhookConfig.Listen)
	fmt.Printf("  path:            %s\n", webhookConfig.Path)
	fmt.Printf("  max_body_size:   %d\n", webhookConfig.MaxBodySize)
	fmt.Printf("  verify_token:    %s\n", maskSecret(cfg.Webhook.VerifyToken))
	fmt.Printf("  app_secret:      %s\n", maskSecret(cfg.Webhook.AppSecret))
	fmt.Printf("  access_token:    %s\n", maskSecret(cfg.WhatsApp.AccessToken))
	fmt.Printf("  phone_number_id: %s\n", cfg.WhatsApp.PhoneNumberID)
	fmt.Printf("  api_version:     %s\n", cfg.WhatsApp.APIVersion)
	fmt.Printf("  test_mode:       %t\n", cfg.WhatsApp.TestMode)
	fmt.Printf("  clinic:          %s\n", cfg.Clinic.Name)

	if cfg.Webhook.AppSecret == "" {
		fmt.Println("Warning: app_secret is empty, deliveries will not be signature-checked")
	}
	if cfg.Webhook.VerifyToken == "" {
		fmt.Println("Warning: verify_token is empty, subscription handshakes will be refused")
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --config is required")
		return 1
	}

	manifestPath, err := config.Lock(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Updated %s\n", manifestPath)
	return 0
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(s string) string {
	switch {
	case s == "":
		return "(unset)"
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
