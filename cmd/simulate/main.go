package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"simutrador-go/internal/auth"
	"simutrador-go/internal/config"
	"simutrador-go/internal/metrics"
	"simutrador-go/internal/protocol"
	"simutrador-go/internal/recorder"
	"simutrador-go/internal/session"
	"simutrador-go/internal/strategy"
	"simutrador-go/internal/util"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		bootLog := util.NewLogger("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.LogLevel)

	if cfg.MetricsAddr != "" {
		_ = metrics.Serve(cfg.MetricsAddr)
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	authClient := auth.New(cfg.Auth.ServerURL, util.NewComponentLogger(cfg.LogLevel, "auth"))
	if _, err := authClient.Login(ctx, cfg.Auth.APIKey); err != nil {
		log.Fatal().Err(err).Msg("login")
	}

	strat := strategy.NewMomentum(
		cfg.Strategy.Threshold,
		cfg.Strategy.WindowBars,
		cfg.Strategy.MinVolume,
		cfg.Strategy.Quantity,
	)

	opts := []session.Option{
		session.WithRiskLimits(cfg.Risk),
	}
	if cfg.Session.ExecutionMode != "" {
		opts = append(opts, session.WithExecutionMode(cfg.Session.ExecutionMode))
	}
	if cfg.Recorder.Enabled {
		rec, err := recorder.NewJSONLRecorder(cfg.Recorder.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Recorder.Path).Msg("open recorder")
		}
		defer rec.Close()
		opts = append(opts, session.WithRecorder(rec))
	}

	client := session.New(authClient, cfg.Server.WebSocketURL, strat, log, opts...)
	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer client.Close()

	params, err := sessionParams(cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("session params")
	}

	log.Info().Strs("symbols", params.Symbols).Str("timeframe", params.Timeframe).Msg("simulation starting")
	sessionID, err := client.Run(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("shutting down")
			return
		}
		log.Fatal().Err(err).Msg("simulation")
	}
	log.Info().Str("session", sessionID).Msg("simulation complete")
}

func sessionParams(cfg config.SessionConfig) (protocol.StartSimulationParams, error) {
	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		return protocol.StartSimulationParams{}, err
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		return protocol.StartSimulationParams{}, err
	}
	extra := map[string]any{}
	if cfg.DataProvider != "" {
		extra["data_provider"] = cfg.DataProvider
	}
	if cfg.Commission > 0 {
		extra["commission"] = cfg.Commission
	}
	if cfg.SlippageBps > 0 {
		extra["slippage_bps"] = cfg.SlippageBps
	}
	return protocol.StartSimulationParams{
		Symbols:        cfg.Symbols,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: cfg.InitialCapital,
		Timeframe:      cfg.Timeframe,
		WarmupBars:     cfg.WarmupBars,
		Adjusted:       cfg.Adjusted,
		Extra:          extra,
	}, nil
}
