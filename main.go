package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

// IsVerbose and IsVeryVerbose gate the Progress/Logging Sink (spec §4.8):
// disabled by default, enabled by -v / -vv.
var (
	IsVerbose     bool
	IsVeryVerbose bool
)

var FlagVerbose = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
	Usage:   "enable progress logging",
	Action: func(cctx *cli.Context, v bool) error {
		IsVerbose = v
		return nil
	},
}

var FlagVeryVerbose = &cli.BoolFlag{
	Name:    "very-verbose",
	Aliases: []string{"vv"},
	Usage:   "enable progress logging plus per-extent detail",
	Action: func(cctx *cli.Context, v bool) error {
		IsVeryVerbose = v
		if v {
			IsVerbose = true
		}
		return nil
	},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "splicegen",
		Version:     gitCommitSHA,
		Description: "Generates a self-contained reconstruction script that rebuilds a binary image from data already present on the target machine.",
		Flags: append([]cli.Flag{
			FlagVerbose,
			FlagVeryVerbose,
		}, NewKlogFlagSet()...),
		Commands: []*cli.Command{
			newCmd_Generate(),
			newCmd_Reconstruct(),
			newCmd_Version(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
