package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"firestige.xyz/schc/internal/metrics"
)

// analyzeCmd runs the engine in observer mode over a capture file: every
// packet is parsed, matched and sized, nothing is modified.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <capture.pcap>",
	Short: "Measure potential compression gains over a pcap file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("invalid configuration", err)
		}
		eng, err := buildEngine(cfg)
		if err != nil {
			exitWithError("failed to build engine", err)
		}
		dir, err := parseDirectionFlag()
		if err != nil {
			exitWithError("invalid direction", err)
		}

		if cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
			if err := srv.Start(cmd.Context()); err != nil {
				exitWithError("failed to start metrics server", err)
			}
			defer srv.Stop(context.Background())
		}

		if err := forEachPacket(args[0], func(data []byte) {
			result, err := eng.Analyze(data, dir)
			switch {
			case err != nil:
				slog.Debug("packet not analyzable", "error", err)
			case !result.Matched:
				slog.Debug("no rule matched")
			default:
				slog.Debug("rule matched",
					"rule", result.RuleID,
					"original_bits", result.OriginalHeaderBits,
					"compressed_bits", result.CompressedHeaderBits)
			}
		}); err != nil {
			exitWithError("failed to read capture", err)
		}

		fmt.Print(eng.Stats().Report())
	},
}

// forEachPacket streams every packet of a pcap file to fn.
func forEachPacket(path string, fn func(data []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("not a pcap file: %w", err)
	}
	for {
		data, _, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(data)
	}
}
