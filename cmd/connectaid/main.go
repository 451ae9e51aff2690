package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"connectaid/internal/app"
	"connectaid/internal/audio"
	"connectaid/internal/bus"
	"connectaid/internal/config"
	"connectaid/internal/geo"
	"connectaid/internal/history"
	"connectaid/internal/ipc"
	"connectaid/internal/nlu"
	"connectaid/internal/notify"
	"connectaid/internal/proxy"
	"connectaid/internal/responders"
	"connectaid/internal/speech"
	"connectaid/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "connectaid.yaml", "Config file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.ProxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(cfg.ProxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", cfg.ProxyAddr, "err", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}
	client := openai.NewClient(opts...)

	whisper, err := stt.NewTranscriber(cfg.WhisperModel)
	if err != nil {
		log.Error("Failed to init whisper", "err", err)
		os.Exit(1)
	}
	defer whisper.Close()
	log.Debug("Loaded whisper")

	var rec speech.Recognizer
	if len(cfg.AudioFrom) > 0 {
		rec = speech.NewFileRecognizer(whisper, cfg.AudioFrom...)
		log.Info("Capturing from files", "count", len(cfg.AudioFrom))
	} else {
		mic := audio.NewRecorder()
		if err := mic.Init(); err != nil {
			log.Error("Failed to init audio", "err", err)
			os.Exit(1)
		}
		defer mic.Close()
		rec = speech.NewMicRecognizer(mic, whisper, cfg.ArchiveDir)
		log.Debug("Loaded recorder")
	}

	channel := speech.NewChannel(rec, speech.EspeakSynthesizer{})

	store, err := history.NewSQLite(cfg.HistoryDB)
	if err != nil {
		log.Error("Failed to open history store", "path", cfg.HistoryDB, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	hub := bus.NewHub()
	go func() {
		if err := hub.Serve(cfg.ListenAddr); err != nil {
			log.Error("Bus server failed", "err", err)
			os.Exit(1)
		}
	}()

	session := app.NewSession(app.Deps{
		Speech:      channel,
		NLU:         nlu.NewClient(client, cfg.Model),
		Locator:     geo.NewAcquirer(cfg.LocationEndpoint, cfg.LocationTimeout.Std()),
		Finder:      responders.NewFinder(client, cfg.Model),
		Store:       store,
		Hub:         hub,
		Ducker:      audio.NewDucker([]string{"connectaid", "espeak"}, 20),
		Earcon:      notify.NewPlayer(cfg.Earcon),
		DefaultLang: cfg.DefaultLang,
	})

	if err := ipc.StartServer(cfg.SocketPath, session.Handle); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful", "session", session.ID())
	session.Welcome(context.Background())

	select {}
}
