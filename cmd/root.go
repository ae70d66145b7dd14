// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/schc/internal/config"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/engine"
	"firestige.xyz/schc/internal/log"
	"firestige.xyz/schc/internal/rules"
)

var (
	// Global flags
	configFile   string
	rulesFile    string
	contextFile  string
	stackNames   []string
	directionStr string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schc",
	Short: "schc - RFC 8724 header compression engine for IPv4/IPv6/UDP/QUIC",
	Long: `schc compresses and decompresses protocol header stacks against a
pre-shared rule context (RFC 8724 Static Context Header Compression).

A packet's headers are parsed field by field, matched against the rule set
(first full match wins), and replaced by a short rule id plus residue bits.
The identical rule context on the other end reverses the transform.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&rulesFile, "rules", "r", "",
		"rule set file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&contextFile, "context", "",
		"field context file")
	rootCmd.PersistentFlags().StringSliceVar(&stackNames, "stack", nil,
		"declared header stack, outermost first (default ethernet,ipv4,udp,quic)")
	rootCmd.PersistentFlags().StringVarP(&directionStr, "direction", "d", "up",
		"packet direction for direction-dependent fields (up or down)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(roundtripCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}

// loadConfig merges the optional config file with command-line flags;
// flags win.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if rulesFile != "" {
		cfg.Rules = rulesFile
	}
	if contextFile != "" {
		cfg.FieldContext = contextFile
	}
	if len(stackNames) > 0 {
		cfg.Stack = stackNames
	}
	if len(cfg.Stack) == 0 {
		cfg.Stack = []string{"ethernet", "ipv4", "udp", "quic"}
	}
	if cfg.Rules == "" {
		return nil, fmt.Errorf("a rule set is required (--rules or config file)")
	}
	return cfg, nil
}

// buildEngine loads the rule context and constructs the engine.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	if err := log.Init(cfg.Log); err != nil {
		return nil, err
	}

	fieldCtx := rules.DefaultFieldContext()
	if cfg.FieldContext != "" {
		loaded, err := rules.LoadFieldContext(cfg.FieldContext)
		if err != nil {
			return nil, err
		}
		fieldCtx = loaded
	}

	set, err := rules.Load(cfg.Rules, fieldCtx)
	if err != nil {
		return nil, err
	}

	stack, err := core.ParseStack(cfg.Stack)
	if err != nil {
		return nil, err
	}
	return engine.New(set, fieldCtx, engine.WithStack(stack)), nil
}

func parseDirectionFlag() (core.Direction, error) {
	dir, err := core.ParseDirection(directionStr)
	if err != nil {
		return dir, err
	}
	if dir == core.DirectionBi {
		return dir, fmt.Errorf("packet direction must be up or down")
	}
	return dir, nil
}
