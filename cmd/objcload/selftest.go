package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/image/builder"
	"github.com/joshuapare/objcload/loader"
)

func init() {
	rootCmd.AddCommand(newSelftestCmd())
}

func newSelftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Register a synthetic image and check the result",
		Long: `The selftest command lays out a small synthetic image in memory (three
classes listed subclass first, a category, and references of every kind),
registers it against an in-process runtime, verifies the result and
disposes everything again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelftest()
		},
	}
}

func runSelftest() error {
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

	img, _ := builder.Sample(builder.DefaultBase)
	h, err := loader.Load(img, rt, opts)
	if err != nil {
		return fmt.Errorf("selftest: %w", err)
	}

	report := h.Report()
	if err := emitReport(report); err != nil {
		_ = h.Close()
		return err
	}

	names := []string{"Base", "Widget", "Gadget"}
	for _, n := range names {
		if c := rt.LookupClass(n); c == host.Nil {
			_ = h.Close()
			return fmt.Errorf("selftest: class %s not live", n)
		}
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("selftest: close: %w", err)
	}
	for _, n := range names {
		if c := rt.LookupClass(n); c != host.Nil {
			return fmt.Errorf("selftest: class %s still live after close", n)
		}
	}
	if !jsonOut {
		printInfo("\nSelftest passed\n")
	}
	return nil
}
