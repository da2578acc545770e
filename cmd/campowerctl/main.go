// Command campowerctl drives one sensor directly, without the daemon: it
// attaches the board, runs a single power command and releases it.
//
//	campowerctl [flags] up|cycle|status [sensor]
//
// "up" keeps the sensor powered until interrupted, then powers it down.
// A fresh process holds no rail or line state from an earlier one, so
// there is no standalone "down"; use campowerd to keep a sensor powered
// across commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/micro-nova/campower/internal/backend"
	"github.com/micro-nova/campower/internal/config"
	"github.com/micro-nova/campower/internal/controller"
	"github.com/micro-nova/campower/internal/models"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] up|cycle|status [sensor]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var (
		mock    = flag.Bool("mock", false, "use the simulated bench instead of real hardware")
		cfgFile = flag.String("config", config.DefaultFileName, "board file")
		hold    = flag.Duration("hold", 2*time.Second, "time powered during cycle")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
		os.Exit(2)
	}
	if err := checkCommand(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "campowerctl:", err)
		usage()
		os.Exit(2)
	}

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if err := run(flag.Arg(0), flag.Arg(1), *cfgFile, *mock, *hold); err != nil {
		fmt.Fprintln(os.Stderr, "campowerctl:", err)
		os.Exit(1)
	}
}

// checkCommand rejects commands before any hardware is claimed.
func checkCommand(cmd string) error {
	switch cmd {
	case "up", "cycle", "status":
		return nil
	case "down":
		return errors.New("down: no powered state survives between runs; interrupt a running \"up\" or use campowerd")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func run(cmd, name, cfgFile string, mock bool, hold time.Duration) error {
	if err := checkCommand(cmd); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	board, err := config.NewYAMLStore(cfgFile).Load()
	if err != nil {
		return err
	}
	if mock {
		board.Backend = config.BackendMock
	}
	if name == "" {
		if len(board.Sensors) != 1 {
			return fmt.Errorf("board has %d sensors, name one", len(board.Sensors))
		}
		name = board.Sensors[0].Name
	}

	deps, release, err := backend.Build(board)
	if err != nil {
		return err
	}
	defer release()

	// No rate limit for a one-shot command.
	board.Rate = config.Limited(0, 1)
	ctrl, err := controller.New(board, deps, nil)
	if err != nil {
		return err
	}
	defer ctrl.Close(context.Background())

	var st models.SensorStatus
	var appErr *models.AppError
	switch cmd {
	case "up":
		st, appErr = ctrl.PowerUp(ctx, name)
	case "cycle":
		if st, appErr = ctrl.PowerUp(ctx, name); appErr == nil {
			select {
			case <-time.After(hold):
			case <-ctx.Done():
			}
			st, appErr = ctrl.PowerDown(ctx, name)
		}
	case "status":
		st, appErr = ctrl.Sensor(name)
	}
	if appErr != nil {
		return appErr
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(st)

	if cmd == "up" {
		fmt.Fprintln(os.Stderr, "campowerctl: powered, interrupt to power down")
		<-ctx.Done()
	}
	return nil
}
