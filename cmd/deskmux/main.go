package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deskmux/deskmux/internal/app"
	"github.com/deskmux/deskmux/internal/config"
	"github.com/deskmux/deskmux/internal/log"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/pty"
	"github.com/deskmux/deskmux/internal/tui"

	// Import providers for registration.
	_ "github.com/deskmux/deskmux/internal/provider/anthropic"
	_ "github.com/deskmux/deskmux/internal/provider/google"
	_ "github.com/deskmux/deskmux/internal/provider/openai"
)

var version = "0.1.0"

func init() {
	// Load .env if it exists (silent fail if not found).
	_ = godotenv.Load()
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deskmux",
	Short: "deskmux - multi-session AI workdesk for the terminal",
	Long: `deskmux multiplexes independent work sessions, each with its own AI
conversation or terminal agent, working directory, and task list. Background
sessions keep their processes and streams running while exactly one session is
foregrounded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		if err := log.Init(dir); err != nil {
			return err
		}

		settings, err := config.Load(dir)
		if err != nil {
			return err
		}

		a, err := app.New(app.Config{
			DataDir: dir,
			Registry: pty.Config{
				ScrollbackCap: settings.ScrollbackBytes,
				Commands:      cliCommands(settings),
			},
		})
		if err != nil {
			return err
		}
		defer a.Close()

		return tui.Run(a)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deskmux %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// cliCommands converts settings command overrides onto provider keys.
func cliCommands(s *config.Settings) map[provider.Provider][]string {
	if len(s.Commands) == 0 {
		return nil
	}
	out := make(map[provider.Provider][]string, len(s.Commands))
	for name, argv := range s.Commands {
		out[provider.Provider(name)] = argv
	}
	return out
}
