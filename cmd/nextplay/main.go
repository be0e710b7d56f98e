// Command nextplay keeps embedded lesson videos playing: it clicks the
// "next" control of each configured page and starts the new player muted.
//
// Usage:
//
//	nextplay run --config nextplay.yaml
//	nextplay run --url https://lms.example/course/1 --http :8090
//	nextplay pages add --db pages.db --id c2 --url https://lms.example/course/2
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var rootCmd = &cobra.Command{
	Use:           "nextplay",
	Short:         "Click-to-next and autoplay daemon for embedded video lessons",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nextplay:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
}

// newLogger builds the JSON stderr logger from --log-level.
func newLogger(cmd *cobra.Command) *slog.Logger {
	name, _ := cmd.Flags().GetString("log-level")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(name)}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
