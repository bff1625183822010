package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/ytget/fb-downloader/internal/config"
	"github.com/ytget/fb-downloader/internal/download"
	"github.com/ytget/fb-downloader/internal/model"
	"github.com/ytget/fb-downloader/internal/platform"
)

// Flag names
const (
	FlagGalleryDL = "gallery-dl"
	FlagConfig    = "config"
	FlagVerbose   = "verbose"
	FlagDest      = "dest"
	FlagSaveDest  = "save-dest"
	FlagWorkDir   = "work-dir"
	FlagNoResolve = "no-resolve"
	FlagKeepWork  = "keep-work"
)

// ExitFailure is returned when gallery-dl or the pipeline fails
const ExitFailure = 1

func newApp() *cli.App {
	return &cli.App{
		Name:    "fb-downloader",
		Version: version,
		Usage:   "download media from Facebook group posts with gallery-dl",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagGalleryDL,
				Usage:   "gallery-dl executable `PATH`",
				EnvVars: []string{config.EnvGalleryDLPath},
			},
			&cli.StringFlag{
				Name:  FlagConfig,
				Usage: "settings `FILE` (default: user config dir)",
			},
			&cli.BoolFlag{
				Name:    FlagVerbose,
				Aliases: []string{"v"},
				Usage:   "log progress to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(FlagVerbose) {
				log.SetOutput(c.App.ErrWriter)
			} else {
				log.SetOutput(io.Discard)
			}
			return config.LoadEnvFiles()
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:      "normalize",
				Usage:     "print the canonical permalink for each URL",
				ArgsUsage: "URL...",
				Action:    normalizeAction,
			},
			{
				Name:      "run",
				Usage:     "run gallery-dl for URL into DIR",
				ArgsUsage: "URL DIR",
				Action:    runAction,
			},
			{
				Name:      "fetch",
				Usage:     "resolve, download and copy URL to the destination",
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: FlagDest, Aliases: []string{"d"}, Usage: "destination folder or s3://bucket/prefix"},
					&cli.BoolFlag{Name: FlagSaveDest, Usage: "remember --dest for later runs"},
					&cli.StringFlag{Name: FlagWorkDir, Usage: "root for temporary work directories"},
					&cli.BoolFlag{Name: FlagNoResolve, Usage: "do not follow share-link redirects"},
					&cli.BoolFlag{Name: FlagKeepWork, Usage: "keep the work directory after copying"},
				},
				Action: fetchAction,
			},
			{
				Name:   "doctor",
				Usage:  "show gallery-dl version and effective settings",
				Action: doctorAction,
			},
		},
	}
}

func openSettings(c *cli.Context) (*config.Settings, *config.FileStore, error) {
	path := c.String(FlagConfig)
	if path == "" {
		var err error
		if path, err = config.DefaultSettingsPath(); err != nil {
			return nil, nil, err
		}
	}
	store, err := config.NewFileStore(path)
	if err != nil {
		return nil, nil, err
	}
	return config.NewSettings(store), store, nil
}

// galleryDL builds the tool from --gallery-dl, falling back to settings and the environment
func galleryDL(c *cli.Context, settings *config.Settings) *platform.GalleryDL {
	binary := c.String(FlagGalleryDL)
	if binary == "" {
		if settings != nil {
			binary = settings.GetGalleryDLPath()
		} else {
			binary = os.Getenv(config.EnvGalleryDLPath)
		}
	}
	tool := platform.NewGalleryDL(binary)
	tool.SetOutput(c.App.Writer, c.App.ErrWriter)
	return tool
}

func normalizeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("normalize: need at least one URL", ExitFailure)
	}
	for _, raw := range c.Args().Slice() {
		fmt.Fprintln(c.App.Writer, platform.NormalizePermalink(raw))
	}
	return nil
}

func runAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("run: need URL and DIR", ExitFailure)
	}

	runner := download.NewRunner(galleryDL(c, nil))
	outcome, err := runner.Execute(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), ExitFailure)
	}

	fmt.Fprintln(c.App.Writer, outcome.String())
	if !outcome.Success() {
		return cli.Exit("", ExitFailure)
	}
	return nil
}

func fetchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("fetch: need exactly one URL", ExitFailure)
	}

	settings, _, err := openSettings(c)
	if err != nil {
		return err
	}

	dest := settings.GetDestination()
	if d := c.String(FlagDest); d != "" {
		dest = d
		if c.Bool(FlagSaveDest) {
			settings.SetDestination(d)
		}
	}

	workDir := settings.GetWorkDirectory()
	if w := c.String(FlagWorkDir); w != "" {
		workDir = w
	}

	var resolver platform.URLResolver
	if settings.GetResolveRedirects() && !c.Bool(FlagNoResolve) {
		r, err := platform.NewResolver()
		if err != nil {
			return err
		}
		resolver = r
	}

	svc := download.NewService(galleryDL(c, settings), resolver, workDir, 1)
	svc.SetDestination(dest)
	svc.SetKeepWorkDir(settings.GetKeepWorkDir() || c.Bool(FlagKeepWork))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	task, err := svc.RunTask(ctx, c.Args().First())
	if err != nil {
		return cli.Exit(download.MessageErrorPrefix+err.Error(), ExitFailure)
	}

	fmt.Fprintln(c.App.Writer, task.Message)
	if task.Status != model.TaskStatusCompleted {
		return cli.Exit("", ExitFailure)
	}
	return nil
}

func doctorAction(c *cli.Context) error {
	settings, store, err := openSettings(c)
	if err != nil {
		return err
	}

	tool := galleryDL(c, settings)
	w := c.App.Writer

	v, verr := platform.GalleryDLVersion(c.Context, tool.Binary())

	fmt.Fprintf(w, "gallery-dl:        %s\n", tool.Binary())
	if verr != nil {
		fmt.Fprintf(w, "version:           unavailable (%v)\n", verr)
	} else {
		fmt.Fprintf(w, "version:           %s\n", v)
	}
	fmt.Fprintf(w, "settings file:     %s\n", store.Path())
	fmt.Fprintf(w, "destination:       %s\n", valueOrDash(settings.GetDestination()))
	fmt.Fprintf(w, "work directory:    %s\n", settings.GetWorkDirectory())
	fmt.Fprintf(w, "resolve redirects: %t\n", settings.GetResolveRedirects())
	fmt.Fprintf(w, "keep work dir:     %t\n", settings.GetKeepWorkDir())

	if verr != nil {
		return cli.Exit("", ExitFailure)
	}
	return nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
