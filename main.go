package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"knock-detection/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	err := utils.CreateFolder("data")
	if err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		ctx := context.Background()
		logger.ErrorContext(ctx, "Failed to create data dir.", slog.Any("error", err))
	}

	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'monitor' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", "5000", "Port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port)
	case "monitor":
		monitorCmd := flag.NewFlagSet("monitor", flag.ExitOnError)
		interval := monitorCmd.Duration("interval", time.Second, "Delay between inference cycles")
		cycles := monitorCmd.Int("cycles", 0, "Stop after this many cycles (0 = run forever)")
		monitorCmd.Parse(os.Args[2:])
		monitor(*interval, *cycles)
	default:
		fmt.Println("Expected 'serve' or 'monitor' subcommand")
		os.Exit(1)
	}
}
