package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/term"

	mpccli "github.com/mhcoelhosilva/mpc-cli"
	"github.com/mhcoelhosilva/mpc-cli/internal/audio"
	"github.com/mhcoelhosilva/mpc-cli/internal/config"
	"github.com/mhcoelhosilva/mpc-cli/internal/input"
	"github.com/mhcoelhosilva/mpc-cli/internal/logging"
	"github.com/mhcoelhosilva/mpc-cli/internal/midiin"
	"github.com/mhcoelhosilva/mpc-cli/internal/tui"
)

const shutdownGrace = 2 * time.Second

func main() {
	rt := config.DefaultRuntime()
	if err := rt.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatal("bad environment", "err", err)
	}

	var (
		configPath = flag.String("config", "samples.yaml", "path to the samples YAML file")
		sampleRate = flag.Int("sample-rate", rt.SampleRate, "output sample rate")
		bufferMS   = flag.Int("buffer-ms", int(rt.BufferSize/time.Millisecond), "output buffer size in milliseconds")
		tickMS     = flag.Int("tick-ms", int(rt.TickInterval/time.Millisecond), "sequencer tick interval in milliseconds")
		logPath    = flag.String("log", "mpc.log", "log file used while the terminal UI is running")
		logLevel   = flag.String("log-level", rt.LogLevel, "debug|info|warn|error")
		headless   = flag.Bool("headless", false, "read raw keys from stdin instead of running the terminal UI")
		midiPort   = flag.String("midi-in", "", "MIDI input port to listen on")
		midiList   = flag.Bool("midi-list", false, "list MIDI input ports and exit")
	)
	flag.Parse()

	if *midiList {
		for _, name := range midiin.Ports() {
			fmt.Println(name)
		}
		return
	}

	rt.SampleRate = *sampleRate
	rt.BufferSize = time.Duration(*bufferMS) * time.Millisecond
	rt.TickInterval = time.Duration(*tickMS) * time.Millisecond
	rt.LogLevel = *logLevel
	if err := rt.Validate(); err != nil {
		log.Fatal("bad flags", "err", err)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	useTUI := interactive && !*headless
	logFile := ""
	if useTUI {
		logFile = *logPath
	}
	logger, logCloser, err := logging.New(logFile, rt.LogLevel)
	if err != nil {
		log.Fatal("logger", "err", err)
	}

	code := run(logger, rt, *configPath, *midiPort, useTUI, interactive)
	_ = logCloser.Close()
	os.Exit(code)
}

func run(logger *log.Logger, rt config.Runtime, configPath, midiPort string, useTUI, interactive bool) int {
	samples, err := config.Load(configPath, logger)
	if err != nil {
		logger.Error("cannot load samples", "config", configPath, "err", err)
		return 1
	}

	backend, err := audio.NewContext(audio.Options{
		SampleRate: rt.SampleRate,
		BufferSize: rt.BufferSize,
		Quality:    rt.Quality,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("cannot initialize audio", "err", err)
		return 1
	}

	meter := tui.NewMeter()
	engine := mpccli.New(backend,
		mpccli.WithLogger(logger),
		mpccli.WithStopTimeout(rt.StopTimeout),
		mpccli.WithAmplitudeObserver(meter.Set),
	)
	if engine.RegisterSamples(samples) == 0 {
		logger.Error("no samples registered", "config", configPath)
		engine.Close()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx, rt.TickInterval)
	go watchEvents(ctx, engine.Watch(), logger)

	if midiPort != "" {
		listener := midiin.New(samples, engine.Trigger, logger)
		if err := listener.Open(midiPort); err != nil {
			logger.Warn("midi input unavailable", "err", err)
		} else {
			defer listener.Close()
		}
	}

	code := 0
	if useTUI {
		model := tui.NewModel(engine, meter, samples, rt.RefreshInterval)
		prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := prog.Run(); err != nil && ctx.Err() == nil {
			logger.Error("terminal ui failed", "err", err)
			code = 1
		}
	} else {
		code = runHeadless(ctx, engine, logger, interactive)
	}

	stop()
	forceExit := time.AfterFunc(shutdownGrace, func() {
		logger.Error("shutdown timed out, forcing exit")
		os.Exit(1)
	})
	engine.Close()
	forceExit.Stop()
	return code
}

func runHeadless(ctx context.Context, engine *mpccli.Engine, logger *log.Logger, interactive bool) int {
	if interactive {
		fd := int(os.Stdin.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			logger.Error("cannot enter raw mode", "err", err)
			return 1
		}
		defer term.Restore(fd, state)
	}
	logger.Info("headless mode: sample keys play, 1 records, 2 plays, esc quits")
	err := input.ReadKeys(ctx, os.Stdin, func(key rune, shift bool) bool {
		return engine.HandleKey(key, shift) != mpccli.ActionQuit
	})
	if err != nil {
		logger.Error("key input failed", "err", err)
		return 1
	}
	return 0
}

func watchEvents(ctx context.Context, events <-chan mpccli.Event, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Err != nil {
				logger.Debug("event", "kind", ev.Kind, "key", string(ev.Key), "pitch", ev.Pitch, "err", ev.Err)
				continue
			}
			logger.Debug("event", "kind", ev.Kind, "key", string(ev.Key), "pitch", ev.Pitch)
		}
	}
}
