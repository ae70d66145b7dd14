package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/schc/internal/rules"
)

// validateCmd loads the rule context and reports what it found. Rule files
// fail loudly here instead of at packet time on a live node.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a rule set and field context",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("invalid configuration", err)
		}

		fieldCtx := rules.DefaultFieldContext()
		if cfg.FieldContext != "" {
			fieldCtx, err = rules.LoadFieldContext(cfg.FieldContext)
			if err != nil {
				exitWithError("invalid field context", err)
			}
		}

		set, err := rules.Load(cfg.Rules, fieldCtx)
		if err != nil {
			exitWithError("invalid rule set", err)
		}

		fmt.Printf("Rule set OK: %d rules, %d-bit rule ids\n", set.Len(), set.RuleIDBits())
		for _, r := range set.Rules() {
			fixed := true
			var residue uint32
			for _, f := range r.Fields {
				n, ok := f.ResidueBits()
				if !ok {
					fixed = false
					break
				}
				residue += uint32(n)
			}
			size := "variable residue"
			if fixed {
				size = fmt.Sprintf("%d residue bits", residue)
			}
			comment := ""
			if r.Comment != "" {
				comment = " - " + r.Comment
			}
			fmt.Printf("  rule %d: %d fields, %s%s\n", r.ID, len(r.Fields), size, comment)
		}
	},
}
