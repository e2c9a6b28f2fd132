// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/adbx/adbx/internal/client"
	"github.com/adbx/adbx/internal/config"
	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/shell"
	"github.com/adbx/adbx/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

const usage = `usage: adbx [flags] <command> [args]

commands:
  devices                     list connected devices
  push [-d dev] <src> <dst>   copy a local file or tree to the device
  pull [-d dev] <src> [dst]   copy a remote file or tree from the device
  shell [-d dev] [cmd ...]    run a command / open an interactive session
  server <status|start|stop|restart>
  version                     print build information

run "adbx -h" for the configuration flags`

func main() {
	log := logger.NewLogger("adbx")

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := client.NewApp(cfg, nil, log)
	if err := dispatch(ctx, app, args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func dispatch(ctx context.Context, app *client.App, args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "devices":
		return runDevices(ctx, app)
	case "push":
		return runPush(ctx, app, rest)
	case "pull":
		return runPull(ctx, app, rest)
	case "shell":
		return runShell(ctx, app, rest)
	case "server":
		return runServer(ctx, app, rest)
	case "version":
		printBuildInfo()
		return nil
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runDevices(ctx context.Context, app *client.App) error {
	devices, err := app.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s", d.Serial, d.State)
		if d.Model != "" {
			fmt.Printf("\tmodel:%s", d.Model)
		}
		fmt.Println()
	}
	return nil
}

func runPush(ctx context.Context, app *client.App, args []string) error {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	dev := fs.String("d", "", "target device serial, alias or substring")
	recursive := fs.Bool("r", false, "push a directory tree")
	skip := fs.Bool("u", false, "skip files the device already has")
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		return errors.New("push needs a source and a destination")
	}

	outcomes, err := app.Push(ctx, *dev, fs.Arg(0), fs.Arg(1), client.TransferOptions{
		Recursive:     *recursive,
		SkipUnchanged: *skip,
	})
	printOutcomes(outcomes)
	if err != nil {
		return err
	}
	return failedError(outcomes)
}

func runPull(ctx context.Context, app *client.App, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	dev := fs.String("d", "", "target device serial, alias or substring")
	recursive := fs.Bool("r", false, "pull a directory tree")
	_ = fs.Parse(args)

	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("pull needs a source and an optional destination")
	}

	outcomes, err := app.Pull(ctx, *dev, fs.Arg(0), fs.Arg(1), client.TransferOptions{
		Recursive: *recursive,
	})
	printOutcomes(outcomes)
	if err != nil {
		return err
	}
	return failedError(outcomes)
}

func runShell(ctx context.Context, app *client.App, args []string) error {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	dev := fs.String("d", "", "target device serial, alias or substring")
	_ = fs.Parse(args)

	command := strings.Join(fs.Args(), " ")
	opts := shell.Options{Output: os.Stdout}
	if command == "" {
		opts.Input = os.Stdin
	}

	_, err := app.Shell(ctx, *dev, command, opts)
	return err
}

func runServer(ctx context.Context, app *client.App, args []string) error {
	if len(args) != 1 {
		return errors.New("server needs one of: status, start, stop, restart")
	}

	switch args[0] {
	case "status":
		status, err := app.ServerStatus(ctx)
		if err != nil {
			return err
		}
		if status.Version != "" {
			fmt.Printf("%s (version %s)\n", status.State, status.Version)
		} else {
			fmt.Println(status.State)
		}
		return nil
	case "start":
		return app.StartServer(ctx)
	case "stop":
		return app.StopServer(ctx)
	case "restart":
		return app.RestartServer(ctx)
	default:
		return fmt.Errorf("unknown server action %q", args[0])
	}
}

func printOutcomes(outcomes []models.TransferOutcome) {
	for _, o := range outcomes {
		switch o.Status {
		case models.TransferSucceeded:
			fmt.Printf("%s -> %s (%d bytes)\n", o.Source, o.Dest, o.Bytes)
		case models.TransferSkipped:
			fmt.Printf("%s skipped, already up to date\n", o.Source)
		case models.TransferFailed:
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", o.Source, o.Err)
		}
	}
}

func failedError(outcomes []models.TransferOutcome) error {
	if failed := models.Failed(outcomes); len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(failed), len(outcomes))
	}
	return nil
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
