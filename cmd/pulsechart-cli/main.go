package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulsechart/internal/config"
	"pulsechart/internal/dashboard"
	"pulsechart/internal/domain"
	"pulsechart/internal/httpapi"
	"pulsechart/internal/narrate"
	"pulsechart/internal/store"
	"pulsechart/internal/stream"
	"pulsechart/pkg/pulsechart"
)

const version = "0.1.0"

func main() {
	server := flag.String("server", "http://localhost:8080", "pulsechart-server HTTP address")
	grpcAddr := flag.String("grpc", "localhost:9090", "pulsechart-server gRPC address")
	ring := flag.Bool("bell", false, "ring the terminal bell when a watched scrub ends")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pulsechart-cli [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version        Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  symbols        List symbols in the local Parquet store\n")
		fmt.Fprintf(os.Stderr, "  charts         List the server's charts\n")
		fmt.Fprintf(os.Stderr, "  open <symbol>  Open a chart for symbol on the server\n")
		fmt.Fprintf(os.Stderr, "  frame <id>     Show the current frame of a chart\n")
		fmt.Fprintf(os.Stderr, "  watch <id>     Stream frames of a chart until interrupted\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := pulsechart.NewClient(*server)

	switch args[0] {
	case "version":
		fmt.Printf("pulsechart-cli %s\n", version)

	case "symbols":
		cfg, _, err := config.LoadForCommand()
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		syms, err := store.NewParquetStore(cfg.Storage.DataDir).ListSymbols(ctx, domain.Market(cfg.Storage.Market))
		if err != nil {
			log.Fatalf("listing symbols: %v", err)
		}
		for _, s := range syms {
			fmt.Println(s)
		}
		fmt.Fprintf(os.Stderr, "%s symbols\n", dashboard.FormatCount(int64(len(syms))))

	case "charts":
		list, err := client.ListCharts(ctx)
		if err != nil {
			log.Fatalf("listing charts: %v", err)
		}
		for _, c := range list {
			src := "inline"
			if c.Source != nil {
				src = c.Source.Symbol + " " + c.Source.Timeframe
			}
			fmt.Printf("%s  %-12s  %5d points  %s\n", c.ID, src, c.SeriesLen, c.Created.Format(time.DateTime))
		}

	case "open":
		needArg(args, "open <symbol> [timeframe]")
		tf := ""
		if len(args) > 2 {
			tf = args[2]
		}
		c, err := client.CreateSymbolChart(ctx, args[1], tf)
		if err != nil {
			log.Fatalf("opening chart: %v", err)
		}
		fmt.Println(c.ID)

	case "frame":
		needArg(args, "frame <id>")
		f, err := client.GetFrame(ctx, args[1])
		if err != nil {
			log.Fatalf("getting frame: %v", err)
		}
		printFrame(f.ID, f.Frame.Seq, f.Frame.State.Scale, f.Frame.State.PanOffset, f.Frame.SeriesLen, f.Range, f.Tooltip)

	case "watch":
		needArg(args, "watch <id>")
		conn, err := stream.Dial(*grpcAddr)
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()
		bell := narrate.NewBell(os.Stderr)
		bell.Silent = !*ring
		ends := narrate.NewScrubEnds(bell)
		err = stream.NewClient(conn, nil).Watch(ctx, args[1], func(f httpapi.FrameJSON) error {
			printFrame(f.ID, f.Frame.Seq, f.Frame.State.Scale, f.Frame.State.PanOffset, f.Frame.SeriesLen, f.Range, f.Tooltip)
			ends.Observe(f.Frame)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			log.Fatalf("watching chart: %v", err)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

func needArg(args []string, usage string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: pulsechart-cli %s\n", usage)
		os.Exit(1)
	}
}

func printFrame(id string, seq uint64, scale, offset float64, n int, rng, tooltip string) {
	fmt.Printf("%s #%d  scale %.2f  offset %.3f  %d points", id, seq, scale, offset, n)
	if rng != "" {
		fmt.Printf("  %s", rng)
	}
	if tooltip != "" {
		fmt.Printf("  [%s]", tooltip)
	}
	fmt.Println()
}
