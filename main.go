package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shorts-sync/internal/ai"
	"shorts-sync/internal/api"
	"shorts-sync/internal/apikeys"
	"shorts-sync/internal/assembly"
	"shorts-sync/internal/bot"
	"shorts-sync/internal/brand"
	"shorts-sync/internal/clipdur"
	"shorts-sync/internal/config"
	"shorts-sync/internal/i18n"
	"shorts-sync/internal/media"
	"shorts-sync/internal/models"
	"shorts-sync/internal/pipeline"
	"shorts-sync/internal/probe"
	"shorts-sync/internal/proxy"
	"shorts-sync/internal/segment"
	"shorts-sync/internal/state"
	"shorts-sync/internal/storage"
	"shorts-sync/internal/synth"
	"shorts-sync/internal/video"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.DefaultContextLogger = &log.Logger

	cfg := config.LoadConfig()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("Unknown LOG_LEVEL, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	localizer := i18n.NewLocalizer(cfg.DefaultLang)

	ledger, err := storage.Open(ctx, storage.Config{
		Driver:        cfg.StorageDriver,
		DatabasePath:  cfg.DatabasePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: Could not initialize run ledger")
	}
	defer ledger.Close()

	store, err := media.NewStore(cfg.MediaRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: Could not initialize media store")
	}

	source := scriptSource(cfg)

	elevenKeys, err := apikeys.NewManager("elevenlabs", cfg.ElevenLabsAPIKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: Could not initialize ElevenLabs keys")
	}
	var proxies *proxy.Manager
	if len(cfg.ProxyURLs) > 0 {
		if proxies, err = proxy.NewManager(cfg.ProxyURLs); err != nil {
			log.Warn().Err(err).Msg("Proxies configured but none usable, connecting directly")
		}
	}
	elevenlabs, err := ai.NewElevenLabsService(elevenKeys, proxies, cfg.ElevenLabsModelID, cfg.VoicesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: Could not initialize ElevenLabs service")
	}

	character, err := brand.Lookup(cfg.BrandCharacter)
	if err != nil {
		log.Warn().Err(err).Msg("Unknown brand character, using the default")
		character = brand.Default()
	}
	generator := video.NewGenerator(video.NewClient(cfg.KieBaseURL, cfg.KieAPIKey), store, character)
	generator.AspectRatio = cfg.VideoAspectRatio
	generator.PollInterval = cfg.VideoPollInterval
	generator.MaxWait = cfg.VideoMaxWait
	generator.Concurrency = cfg.SegmentConcurrency

	runner := pipeline.NewRunner(
		segment.NewPlanner(source),
		synth.New(elevenlabs, probe.New(cfg.FFprobePath, cfg.ProbeTimeout), cfg.SegmentConcurrency),
		generator,
		assembly.NewReconciler(assembly.NewFFmpegEncoder(cfg.FFmpegPath, ""), models.Transition(cfg.Transition)),
		ledger,
		store,
		pipeline.Config{
			SyncEnabled:    cfg.SyncEnabled,
			DefaultClass:   clipdur.ShortClass,
			DefaultVoiceID: cfg.DefaultVoiceID,
		},
	)

	var g errgroup.Group
	g.Go(func() error {
		return api.NewServer(ctx, runner, ledger).ListenAndServe(ctx, cfg.HTTPAddr)
	})

	if cfg.TelegramBotToken != "" {
		telegramBot, err := bot.New(cfg.TelegramBotToken, localizer, runner, ledger, elevenlabs, state.NewManager())
		if err != nil {
			log.Fatal().Err(err).Msg("FATAL: Could not initialize bot")
		}
		g.Go(func() error {
			log.Info().Msg("Bot initialized. Starting to listen for updates...")
			telegramBot.Start(ctx)
			return nil
		})
	} else {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, running the HTTP API only")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}
	log.Info().Msg("Shut down")
}

func scriptSource(cfg *config.Config) segment.ScriptSource {
	if cfg.ScriptProvider == "openai" {
		source, err := ai.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			log.Fatal().Err(err).Msg("FATAL: Could not initialize OpenAI service")
		}
		return source
	}

	keys, err := apikeys.NewManager("gemini", cfg.GeminiAPIKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("FATAL: Could not initialize Gemini keys")
	}
	return ai.NewGeminiService(keys, cfg.GeminiModel)
}
