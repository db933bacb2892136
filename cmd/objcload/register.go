package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/objcload/internal/atomicfile"
	"github.com/joshuapare/objcload/loader"
	"github.com/joshuapare/objcload/register"
)

var (
	cborPath    string
	strict      bool
	showJournal bool
)

func init() {
	rootCmd.AddCommand(newRegisterCmd())
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <image>",
		Short: "Load an image and register its classes with an in-process runtime",
		Long: `The register command maps a Mach-O image, runs every registration stage
against an in-process runtime seeded from the load profile, prints the
report, and disposes the classes again. The image file is never modified.

Example:
  objcload register /opt/lib/libWidgets.dylib
  objcload register libWidgets.dylib --config profile.toml --json
  objcload register libWidgets.dylib --cbor report.cbor --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(args)
		},
	}
	cmd.Flags().StringVar(&cborPath, "cbor", "", "Write the report as CBOR to this file")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit immediately on a class name collision")
	cmd.Flags().BoolVar(&showJournal, "journal", false, "Print every rewritten slot")
	return cmd
}

func runRegister(args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	logger, err := newLogger(p, os.Stderr)
	if err != nil {
		return err
	}
	rt, err := p.NewRuntime()
	if err != nil {
		return err
	}
	opts, err := p.LoaderOptions(logger)
	if err != nil {
		return err
	}
	opts.ExitOnCollision = strict

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}
	printVerbose("Opening image: %s\n", path)
	printVerbose("Profile: segments=%v collision=%s layout=%s\n", p.Segments, p.Collision, p.Layout)

	h, err := loader.Open(path, rt, opts)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", path, err)
	}
	defer h.Close()

	if showJournal {
		printInfo("%s\n", h.Session().Journal().Export())
	}
	for _, r := range h.Image().Writes().Ranges() {
		printVerbose("Patched: [0x%x, 0x%x)\n", r.Off, r.End())
	}
	return emitReport(h.Report())
}

// emitReport prints the report and writes the CBOR snapshot if asked to.
func emitReport(r *register.Report) error {
	if cborPath != "" {
		data, err := register.MarshalReport(r)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if err := atomicfile.Write(cborPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cborPath, err)
		}
		printVerbose("Report written to %s\n", cborPath)
	}
	if jsonOut {
		return printJSON(r)
	}
	printReport(r)
	return nil
}

func printReport(r *register.Report) {
	printInfo("\nRegistration of %s:\n", r.Image)
	printVerbose("  Session: %s\n", r.Session)
	printInfo("  Selectors:  %d slots, %d rewritten\n", r.Selectors.Slots, r.Selectors.Rewritten)
	printInfo("  Classes:    %d live in %d passes\n", r.Live(), r.Passes)
	for _, c := range r.Classes {
		line := fmt.Sprintf("    %-24s %-22s attempts=%d", c.Name, c.Status, c.Attempts)
		if c.Error != "" {
			line += "  " + c.Error
		}
		printVerbose("%s\n", line)
	}
	printInfo("  Class refs: %d slots, %d rewritten, %d skipped\n", r.ClassRefs.Slots, r.ClassRefs.Rewritten, r.ClassRefs.Skipped)
	printInfo("  Super refs: %d slots, %d rewritten, %d skipped\n", r.SuperRefs.Slots, r.SuperRefs.Rewritten, r.SuperRefs.Skipped)
	printInfo("  Categories: %d\n", len(r.Categories))
	for _, c := range r.Categories {
		mark := "✓"
		if !c.OK() {
			mark = "✗"
		}
		printInfo("    %s %s(%s) added=%d failed=%d\n", mark, c.Target, c.Name, c.Added, c.Failed)
	}
	printInfo("  Slot writes: %d\n", r.Writes)
}
