package main

import (
	"fmt"
	"io"
	"os"

	"workshopcast/pkg/auth"
	"workshopcast/pkg/cache"
	"workshopcast/pkg/command"
	"workshopcast/pkg/config"
	"workshopcast/pkg/fetcher"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/packager"
	"workshopcast/pkg/publisher"
	"workshopcast/pkg/steam"
	"workshopcast/pkg/ui"
	"workshopcast/pkg/workflow"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	cache    *cache.Manager
	sessions *auth.Manager
	prompt   *ui.ConsolePrompter
	workflow *workflow.Workflow
}

// loadConfig loads the configuration with the global flags applied.
func loadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet {
		flags["log-level"] = "error"
	}
	if channelID != 0 {
		flags["channel"] = channelID
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	store, err := cache.NewManager(cfg.Paths.CacheRoot, log)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	var toolOut io.Writer = os.Stdout
	var notifier workflow.Notifier
	if quiet {
		toolOut = io.Discard
	} else {
		notifier = ui.NewNotifier()
	}

	prompt := ui.NewConsolePrompter()
	client := steam.NewClient(cfg.Steam, log)
	progress := ui.NewUploadProgress(os.Stdout)

	wf := workflow.New(workflow.Deps{
		Prompt:    prompt,
		Steam:     steam.NewScraper(client, steam.NewHTMLExtractor(), log),
		Images:    client,
		Fetcher:   fetcher.New(cfg, command.ExecRunner{}, log, toolOut),
		Packager:  packager.New(cfg, command.ExecRunner{}, log, toolOut),
		Cache:     store,
		Connector: workflow.NewSessionConnector(cfg.Telegram, sessions, prompt, log),
		Notifier:  notifier,
		Publish: publisher.Options{
			SteamBase: cfg.Steam.BaseURL,
			MaxSide:   publisher.MaxPhotoSide,
			Progress:  progress.Report,
		},
		ChannelID: cfg.Telegram.ChannelID,
		Out:       os.Stdout,
		Logger:    log,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		cache:    store,
		sessions: sessions,
		prompt:   prompt,
		workflow: wf,
	}, nil
}
