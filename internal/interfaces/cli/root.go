package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/application/services"
	"gitty.dev/cli/internal/core/ports"
	"gitty.dev/cli/internal/infrastructure/config"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// CLIContainer holds the services commands run against
type CLIContainer struct {
	Objects   *services.ObjectService
	History   *services.HistoryService
	Inventory *services.InventoryService
	Refs      ports.RefStore
	Inspector ports.PackInspector
	Logger    zerolog.Logger
	NoColor   bool
	// Close releases open pack files
	Close func() error
}

// Bootstrap builds the container once global flags are known
type Bootstrap func(ctx context.Context, flags config.Overrides) (*CLIContainer, error)

// session carries the lazily built container through a command run
type session struct {
	bootstrap Bootstrap
	container *CLIContainer
	flags     config.Overrides
}

func (s *session) get() *CLIContainer {
	return s.container
}

func newRoot(bootstrap Bootstrap) (*cobra.Command, *session) {
	s := &session{bootstrap: bootstrap}

	rootCmd := &cobra.Command{
		Use:   "gitty",
		Short: "gitty - read a git object database without git",
		Long: `gitty reads loose objects, pack files and refs straight from a
repository's .git directory.

It resolves revisions the way git rev-parse does, prints objects like
git cat-file, walks history, and can browse the object graph
interactively.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.bootstrap(cmd.Context(), s.flags)
			if err != nil {
				return err
			}
			s.container = c
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.close()
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVar(&s.flags.GitDir, "git-dir", "", "Path to the repository's git directory (skips discovery)")
	rootCmd.PersistentFlags().BoolVar(&s.flags.Debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&s.flags.NoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Config file path (default is $XDG_CONFIG_HOME/gitty/config.yaml)")

	rootCmd.AddCommand(newCatFileCommand(s))
	rootCmd.AddCommand(newLsTreeCommand(s))
	rootCmd.AddCommand(newRevParseCommand(s))
	rootCmd.AddCommand(newLogCommand(s))
	rootCmd.AddCommand(newShowRefCommand(s))
	rootCmd.AddCommand(newCountObjectsCommand(s))
	rootCmd.AddCommand(newVerifyPackCommand(s))
	rootCmd.AddCommand(newBrowseCommand(s))

	return rootCmd, s
}

func (s *session) close() error {
	if s.container == nil || s.container.Close == nil {
		return nil
	}
	err := s.container.Close()
	s.container.Close = nil
	return err
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Run executes the command line and returns the process exit status
func Run(ctx context.Context, bootstrap Bootstrap, args []string, stdout, stderr io.Writer) int {
	rootCmd, s := newRoot(bootstrap)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	// cobra skips PersistentPostRunE when a command fails
	defer s.close()
	if err == nil {
		return 0
	}

	noColor := s.flags.NoColor || os.Getenv("NO_COLOR") != ""
	if c := s.get(); c != nil {
		noColor = noColor || c.NoColor
	}
	return reportError(stderr, err, noColor, s.get())
}

