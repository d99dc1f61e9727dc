// cmd/discord/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filmklub/internal/catalog"
	"filmklub/internal/command/all"
	"filmklub/internal/config"
	"filmklub/internal/discord"
	"filmklub/internal/logging"
	"filmklub/internal/metrics"
	"filmklub/internal/middleware"
	"filmklub/internal/movienight"
	"filmklub/internal/soundboard"
	"filmklub/internal/storage"
	"filmklub/internal/voice"
	"filmklub/pkg/cache"
	"filmklub/pkg/cmd"
	"filmklub/pkg/jobmgr"
)

const appName = "filmklub"

func main() {
	config.LoadDotEnv()
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	logger.Info().Str("app", appName).Msg("Starting bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Bot stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("Bot exited cleanly")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger zerolog.Logger) error {
	store, err := storage.New(cfg.StoragePath, cfg.StorageBackup, logging.Component(logger, "storage"))
	if err != nil {
		return err
	}

	jobs := jobmgr.NewManager(metrics.ObserveJob)
	defer jobs.Shutdown()

	var titleCache cache.Cache = cache.NewInMemory()
	if cfg.CacheAddr != "" {
		vc, err := cache.NewValkey(cfg.CacheAddr, cfg.CachePassword, appName+":")
		if err != nil {
			logger.Warn().Err(err).Msg("Valkey unavailable, using in-memory cache")
		} else {
			defer vc.Close()
			titleCache = vc
		}
	}
	cat := catalog.NewClient(catalog.Config{
		BaseURL:  cfg.CatalogBaseURL,
		Timeout:  cfg.HTTPTimeout,
		CacheTTL: cfg.CatalogCacheTTL,
	}, titleCache, logging.Component(logger, "catalog"))
	cat.OnRequest(metrics.ObserveCatalog)

	session, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	transport := discord.NewVoiceTransport(session, logging.Component(logger, "voice"))
	lookup := discord.NewVoiceLookup(session)
	voiceMgr := voice.NewManager(transport, voice.FFmpegDecoder{}, lookup, jobs, logging.Component(logger, "voice"))
	defer voiceMgr.Shutdown()

	controller := movienight.New(store, cat,
		discord.NewPollService(session),
		discord.NewEventScheduler(session, httpClient, logging.Component(logger, "events")),
		jobs,
		logging.Component(logger, "movienight"),
		movienight.Options{
			Location:    cfg.EventLocation,
			RatingDelay: cfg.RatingPollDelay,
			DeleteGrace: cfg.DeleteGrace,
		})

	library := soundboard.NewLibrary(cfg.SoundsDir, httpClient, logging.Component(logger, "soundboard"))
	entrances := soundboard.NewEntrances(store, library, voiceMgr, jobs, logging.Component(logger, "soundboard"))
	entrances.Delay = cfg.EntranceDelay
	entrances.LeaveDelay = cfg.LeaveDelay

	registry := cmd.NewRegistry()
	mws := []cmd.Middleware{
		middleware.WithCommandLogger(logging.Component(logger, "commands")),
		middleware.WithGuildOnly(),
		middleware.WithUserPermissionCheck(),
	}
	if err := all.Register(registry, all.Deps{
		AppName:    appName,
		Controller: controller,
		Library:    library,
		Entrances:  entrances,
		Player:     voiceMgr,
		Voice:      lookup,
		Members:    discord.NewMembers(session),
	}, mws...); err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(promRegistry)
	metrics.StartServer(ctx, logging.Component(logger, "metrics"), cfg.MetricsAddr, promRegistry)

	bot := discord.NewBot(discord.Options{
		Session:    session,
		Config:     cfg,
		Registry:   registry,
		Controller: controller,
		Voice:      voiceMgr,
		Transport:  transport,
		Lookup:     lookup,
		Entrances:  entrances,
		DataDir:    filepath.Dir(cfg.StoragePath),
		Logger:     logging.Component(logger, "discord"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("Shutting down")
		cancel()
		return <-errCh
	case err := <-errCh:
		cancel()
		return err
	}
}
