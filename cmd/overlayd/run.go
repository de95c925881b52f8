package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pathvector/overlayd"
	"github.com/pathvector/overlayd/config"
	"github.com/pathvector/overlayd/snapshot"
	"github.com/pathvector/overlayd/trafficgen"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var (
	runCmd = &cobra.Command{
		Use:  "run configFile delta runLength [static] [debug|debugg|debuggg|debugggg] [enFA]",
		Args: cobra.RangeArgs(3, 6),
		RunE: run,
	}

	sigUSR1 = syscall.Signal(0xa)
)

// runArgs is the parsed form of the CLI's positional grammar.
type runArgs struct {
	configFile string
	delta      time.Duration
	runLength  time.Duration
	static     bool
	debugLvl   int
	enFA       bool
}

func parseRunArgs(args []string) (runArgs, error) {
	var ra runArgs
	ra.configFile = args[0]

	deltaSec, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return ra, fmt.Errorf("invalid delta %q: %w", args[1], err)
	}
	ra.delta = time.Duration(deltaSec * float64(time.Second))

	runLengthSec, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return ra, fmt.Errorf("invalid runLength %q: %w", args[2], err)
	}
	ra.runLength = time.Duration(runLengthSec * float64(time.Second))

	debugLevels := map[string]int{
		"debug":    1,
		"debugg":   2,
		"debuggg":  3,
		"debugggg": 4,
	}
	for _, tok := range args[3:] {
		switch {
		case tok == "static":
			ra.static = true
		case tok == "enFA":
			ra.enFA = true
		default:
			lvl, ok := debugLevels[tok]
			if !ok {
				return ra, fmt.Errorf("unrecognized argument %q", tok)
			}
			ra.debugLvl = lvl
		}
	}

	return ra, nil
}

func run(cmd *cobra.Command, args []string) error {
	ra, err := parseRunArgs(args)
	if err != nil {
		return err
	}

	c, err := config.LoadConfig(ra.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := slog.LevelInfo
	if logLevel != nil && *logLevel != "" {
		if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	} else if ra.debugLvl > 0 {
		// Debug levels 1-4 progressively unhide internal tracing below
		// slog's own Debug level.
		level = slog.Level(int(slog.LevelDebug) - (ra.debugLvl - 1))
	}

	setupLogging(level)

	inst := overlayd.New(Version, c, ra.static, ra.debugLvl, ra.enFA)

	slog.Info(
		"starting overlayd",
		"version", Version,
		"id", c.MyIP.String(),
		"neighbors", len(c.Neighbors),
	)

	if err := inst.Start(); err != nil {
		return fmt.Errorf("failed to start overlayd: %w", err)
	}

	done := make(chan struct{})
	if ra.runLength > 0 {
		go func() {
			trafficgen.Run(inst, trafficgen.Config{
				Delta:        ra.delta,
				RunLength:    ra.runLength,
				Destinations: c.Destinations,
			}, slog.Default())
			close(done)
		}()
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		sigUSR1,
	)

signalLoop:
	for {
		select {
		case sig := <-signalCh:
			if sig == sigUSR1 {
				printStackTo(os.Stderr, "PRINTING STACK ON REQUEST")
				continue signalLoop
			}
			fmt.Println(" <INTERRUPT>") // CLI output.
			slog.Warn("program was interrupted, stopping")

			// catch signals during shutdown
			go func() {
				forceCnt := 5
				for {
					<-signalCh
					forceCnt--
					if forceCnt > 0 {
						fmt.Printf(" <INTERRUPT> again, but already shutting down - %d more to force\n", forceCnt)
					} else {
						printStackTo(os.Stderr, "PRINTING STACK ON FORCED EXIT")
						os.Exit(1)
					}
				}
			}()

			go func() {
				time.Sleep(3 * time.Minute)
				printStackTo(os.Stderr, "PRINTING STACK - TAKING TOO LONG FOR SHUTDOWN")
				os.Exit(1)
			}()

			break signalLoop

		case err := <-inst.FatalErr():
			slog.Error("fatal substrate error, stopping", "err", err)
			break signalLoop

		case <-done:
			slog.Info("traffic generator run complete, stopping")
			break signalLoop
		}
	}

	if !inst.Stop() {
		slog.Error("failed to stop overlayd cleanly")
	}

	if *dumpState != "" {
		if err := snapshot.Write(*dumpState, inst.Snapshot()); err != nil {
			slog.Error("failed to write debug-state snapshot", "err", err)
		}
	}

	return nil
}

func setupLogging(level slog.Level) {
	logOutput := os.Stdout
	var logHandler slog.Handler
	switch runtime.GOOS {
	case "windows":
		logHandler = tint.NewHandler(
			colorable.NewColorable(logOutput),
			&tint.Options{
				AddSource:  true,
				Level:      level,
				TimeFormat: time.DateTime,
			},
		)
	case "linux":
		logHandler = tint.NewHandler(logOutput, &tint.Options{
			AddSource:  true,
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isatty.IsTerminal(logOutput.Fd()),
		})
	default:
		logHandler = tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:  true,
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    true,
		})
	}
	slog.SetDefault(slog.New(logHandler))
	slog.SetLogLoggerLevel(level)
}

func printStackTo(writer io.Writer, msg string) {
	_, err := fmt.Fprintf(writer, "===== %s =====\n", msg)
	if err == nil {
		err = pprof.Lookup("goroutine").WriteTo(writer, 1)
	}
	if err != nil {
		slog.Error("failed to write stack trace", "err", err)
	}
}
