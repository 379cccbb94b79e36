package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	usbraw "github.com/pcaptools/usbraw"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1) // second signal. Exit directly.
	}()

	return ctx
}

func launch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	transfer, err := usbraw.ParseTransferType(cmd.String("transfer"))
	if err != nil {
		return err
	}

	m := usbraw.Matcher{
		Transfer:   transfer,
		FromDevice: cmd.Bool("from-device"),
		Device:     cmd.Uint16("device"),
		Endpoint:   cmd.Uint8("endpoint"),
	}

	input := cmd.String("input")
	output := cmd.String("output")
	log.Infof("Extracting %v transfers from %s...", transfer, input)

	stats, err := usbraw.Run(ctx, input, output, m)
	if err != nil {
		return err
	}

	log.Infof("%d packets scanned, %d matched, %d bytes written to %s",
		stats.Packets, stats.Matched, stats.Bytes, output)
	return nil
}

func main() {
	ctx := SetupSignalHandler()

	cmd := &cli.Command{
		Name:   "usbraw",
		Usage:  "Extract raw USB transfer payloads from a capture file",
		Action: launch,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"r", "i"},
				Usage:    "Capture file (pcap or pcapng) to read",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"w", "o"},
				Usage:    "File the concatenated payload bytes are appended to",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "transfer",
				Aliases: []string{"t"},
				Value:   "isochronous",
				Usage:   "Transfer type to keep (isochronous, interrupt, control, bulk)",
			},
			&cli.BoolFlag{
				Name:  "from-device",
				Usage: "Keep device-to-host transfers instead of host-to-device",
			},
			&cli.Uint16Flag{
				Name:  "device",
				Usage: "Only keep transfers for this device address (0 = any)",
			},
			&cli.Uint8Flag{
				Name:  "endpoint",
				Usage: "Only keep transfers for this endpoint number (0 = any)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log the payload length of every matched packet",
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
