package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerelay/internal/adapters/portaudio"
	"github.com/dkeye/voicerelay/internal/adapters/realtime"
	"github.com/dkeye/voicerelay/internal/adapters/ws"
	"github.com/dkeye/voicerelay/internal/app/capture"
	"github.com/dkeye/voicerelay/internal/app/playback"
	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/config"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := config.Flags("voice")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse flags")
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("voice client stopped")
		os.Exit(1)
	}
	log.Info().Msg("voice client exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	devCfg := portaudio.Config{
		SampleRate:      float64(cfg.Audio.SampleRate),
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}

	engine := playback.NewEngine(portaudio.NewOutput(devCfg), playback.Config{
		InterruptTimeout: cfg.Audio.InterruptTimeout,
	}, nil)
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	recorder := capture.NewRecorder(portaudio.NewInput(devCfg), capture.Config{
		ChunkSize: cfg.Audio.ChunkSize,
		TrackID:   domain.NewTrackID(),
	}, nil)

	var wav *audio.WAVRecorder
	if cfg.Client.Record != "" {
		var err error
		if wav, err = audio.CreateWAV(cfg.Client.Record, cfg.Audio.SampleRate); err != nil {
			return err
		}
		defer func() {
			if err := wav.Close(); err != nil {
				log.Error().Err(err).Msg("close recording")
			}
		}()
	}

	conn, err := ws.DialClient(ctx, cfg.Client.RelayURL, 64)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("relay", cfg.Client.RelayURL).Msg("connected to relay")

	bridge := realtime.NewBridge(engine, conn, cfg.Audio.SampleRate)
	if err := bridge.Configure(); err != nil {
		return err
	}

	if err := recorder.Start(ctx); err != nil {
		return err
	}
	defer recorder.Stop()

	// Frames keep flowing after ctx ends until the recorder has flushed.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pump(connCtx, cfg, recorder, engine, bridge, wav)
	}()

	errc := make(chan error, 1)
	go func() {
		errc <- conn.Run(connCtx, func(f core.Frame) {
			if err := bridge.HandleUpstream(connCtx, f); err != nil {
				log.Debug().Err(err).Str("module", "voice").Msg("upstream event not applied")
			}
		})
	}()

	select {
	case <-ctx.Done():
		recorder.Stop()
		wg.Wait()
		connCancel()
		<-errc
		return nil
	case err := <-errc:
		recorder.Stop()
		wg.Wait()
		return err
	}
}

// pump forwards captured frames upstream and fires barge-in on speech.
func pump(ctx context.Context, cfg *config.Config, rec *capture.Recorder, engine *playback.Engine, bridge *realtime.Bridge, wav *audio.WAVRecorder) {
	logger := log.With().Str("module", "voice").Logger()
	detector := audio.NewSpeechDetector(cfg.Audio.SpeechThreshold, cfg.Audio.SpeechHoldFrames)

	for frame := range rec.Frames() {
		if wav != nil {
			if err := wav.Write(frame.Samples); err != nil {
				logger.Error().Err(err).Msg("write recording")
				wav = nil
			}
		}
		if detector.Observe(frame.Samples) && engine.Playing() {
			go func() {
				res, err := bridge.Interrupt(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("barge-in failed")
					return
				}
				if res.Found {
					logger.Info().Str("track_id", string(res.TrackID)).Int64("offset", res.Offset).Msg("barge-in")
				}
			}()
		}
		if err := bridge.SendAudio(frame); err != nil {
			if errors.Is(err, ws.ErrBackpressure) {
				logger.Warn().Uint64("seq", frame.Seq).Msg("relay backpressure, frame dropped")
				continue
			}
			logger.Debug().Err(err).Msg("send audio")
		}
	}
}
