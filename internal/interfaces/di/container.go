package di

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/application/services"
	"gitty.dev/cli/internal/core/ports"
	"gitty.dev/cli/internal/infrastructure/config"
	"gitty.dev/cli/internal/infrastructure/logging"
	"gitty.dev/cli/internal/infrastructure/loose"
	"gitty.dev/cli/internal/infrastructure/pack"
	"gitty.dev/cli/internal/infrastructure/refs"
	"gitty.dev/cli/internal/infrastructure/repository"
	"gitty.dev/cli/internal/interfaces/cli"
)

// Options adjusts how the container reaches the outside world
type Options struct {
	// Env replaces the process environment when set
	Env config.LookupEnv
	// WorkDir is where repository discovery starts; defaults to the cwd
	WorkDir string
	// LogOutput defaults to os.Stderr
	LogOutput io.Writer
}

// Container holds all application dependencies
type Container struct {
	// Configuration
	Config config.Config
	Layout repository.Layout

	// Infrastructure
	Loose []*loose.Store
	Packs *pack.Set
	Refs  *refs.Store

	// Application services
	Objects   *services.ObjectService
	History   *services.HistoryService
	Inventory *services.InventoryService
	Inspector ports.PackInspector

	Logger zerolog.Logger
}

// NewContainer loads configuration, locates the repository and wires
// every component
func NewContainer(ctx context.Context, flags config.Overrides, opts Options) (*Container, error) {
	loader := config.NewLoader()
	if opts.Env != nil {
		loader = config.NewLoaderWithEnv(opts.Env)
	}
	cfg, err := loader.Load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	c := &Container{
		Config: cfg,
		Logger: logging.New(logging.Config{
			Level:   cfg.LogLevel,
			Output:  opts.LogOutput,
			NoColor: cfg.NoColor,
			JSON:    cfg.LogFormat == config.LogFormatJSON,
		}),
	}
	c.Logger.Debug().Str(logging.FieldEvent, "config.loaded").Str(logging.FieldPath, cfg.Path).
		Interface("sources", cfg.Sources).Msg("configuration resolved")

	if err := c.initializeComponents(ctx, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// initializeComponents opens the repository with proper dependencies
func (c *Container) initializeComponents(ctx context.Context, opts Options) error {
	// 1. Locate the repository
	finder := repository.NewFinder()
	var err error
	if c.Config.GitDir != "" {
		c.Layout, err = finder.Open(c.Config.GitDir)
	} else {
		start := opts.WorkDir
		if start == "" {
			if start, err = os.Getwd(); err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		c.Layout, err = finder.Discover(start)
	}
	if err != nil {
		return err
	}
	c.Logger.Debug().Str(logging.FieldEvent, "repository.open").Str(logging.FieldPath, c.Layout.GitDir).
		Strs("object_dirs", c.Layout.ObjectDirs).Msg("repository located")

	// 2. Object backends: loose directories first, then every pack
	backends := make([]ports.ObjectBackend, 0, len(c.Layout.ObjectDirs)+1)
	looseLog := logging.WithComponent(c.Logger, "loose")
	for _, dir := range c.Layout.ObjectDirs {
		store := loose.NewStore(dir, looseLog)
		c.Loose = append(c.Loose, store)
		backends = append(backends, store)
	}

	c.Packs, err = pack.LoadSet(ctx, c.Layout.ObjectDirs, pack.Options{
		CacheBytes: c.Config.CacheBytes(),
		Logger:     logging.WithComponent(c.Logger, "pack"),
	})
	if err != nil {
		return err
	}
	backends = append(backends, c.Packs)

	// 3. Refs
	c.Refs = refs.NewStore(c.Layout.GitDir, logging.WithComponent(c.Logger, "refs"))

	// 4. Application services
	c.Objects = services.NewObjectService(c.Refs, c.Logger, backends...)
	c.Packs.SetBaseResolver(c.Objects.BaseResolver())
	c.History = services.NewHistoryService(c.Objects, c.Logger)
	// count-objects reports the repository's own objects, not its alternates
	c.Inventory = services.NewInventoryService(c.Packs.LocalStats(c.Layout.ObjectDirs[0]), c.Loose[0])
	c.Inspector = pack.NewInspector(c.Objects.BaseResolver(), logging.WithComponent(c.Logger, "pack"))

	return nil
}

// CLIContainer returns the view of the container commands run against
func (c *Container) CLIContainer() *cli.CLIContainer {
	return &cli.CLIContainer{
		Objects:   c.Objects,
		History:   c.History,
		Inventory: c.Inventory,
		Refs:      c.Refs,
		Inspector: c.Inspector,
		Logger:    c.Logger,
		NoColor:   c.Config.NoColor,
		Close:     c.Shutdown,
	}
}

// Shutdown closes every open pack file
func (c *Container) Shutdown() error {
	if c.Packs == nil {
		return nil
	}
	err := c.Packs.Close()
	c.Packs = nil
	if err != nil {
		c.Logger.Warn().Str(logging.FieldEvent, "container.shutdown").Err(err).Msg("closing packs")
	}
	return err
}

// Bootstrap builds a container for the process environment
func Bootstrap(ctx context.Context, flags config.Overrides) (*cli.CLIContainer, error) {
	return BootstrapWith(Options{})(ctx, flags)
}

// BootstrapWith returns a cli.Bootstrap using opts
func BootstrapWith(opts Options) cli.Bootstrap {
	return func(ctx context.Context, flags config.Overrides) (*cli.CLIContainer, error) {
		c, err := NewContainer(ctx, flags, opts)
		if err != nil {
			return nil, err
		}
		return c.CLIContainer(), nil
	}
}

