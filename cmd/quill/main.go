package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youruser/quill/internal/config"
	"github.com/youruser/quill/internal/logging"
)

//go:embed system_prompt.txt
var defaultSystemPrompt string

//go:embed version.txt
var version string

// buildCommit is set via -ldflags or falls back to VCS info from debug.ReadBuildInfo.
var buildCommit string

var log = logging.Get()

var (
	configPath string
	dbPath     string
	noPersist  bool
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Conversation and image generation backend",
	Long: `quill is a chat and image generation backend speaking
newline-delimited JSON over stdin/stdout, intended to sit behind an
editor or terminal frontend.

Run "quill serve" and write one JSON request per line, e.g.
  {"action":"send","content":"hello","request_id":"1"}`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON request loop on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quill %s\n", versionString())
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Config file (default ~/.config/quill/config.json)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Conversation database (default ~/.local/share/quill/quill.db)")
	serveCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Disable durable conversation storage")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	v := strings.TrimSpace(version)
	if commit := getBuildCommit(); commit != "" {
		return v + " (" + commit + ")"
	}
	return v
}

func getBuildCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
		}
	}
	return ""
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func defaultDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "quill", "quill.db"), nil
}

func main() {
	defer log.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
