package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/image"
	"github.com/joshuapare/objcload/loader"
	"github.com/joshuapare/objcload/metadata"
)

func init() {
	rootCmd.AddCommand(newSectionsCmd())
}

func newSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections <image>",
		Short: "List the Objective-C metadata sections of an image",
		Long: `The sections command lists the selector-ref, class-list, class-ref,
superclass-ref and category-list sections of a Mach-O image, with the
number of entries registration will process.

Example:
  objcload sections libWidgets.dylib
  objcload sections libWidgets.dylib --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSections(args)
		},
	}
}

type sectionInfo struct {
	Segment string `json:"segment"`
	Name    string `json:"name"`
	Addr    uint64 `json:"addr"`
	Size    uint64 `json:"size"`
	Entries int    `json:"entries"`
}

func runSections(args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	printVerbose("Opening image: %s\n", args[0])
	img, err := image.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer img.Close()
	return printSections(img, p.Segments)
}

func collectSections(img *image.Image, segments []string) []sectionInfo {
	found := loader.FindSections(img, segments)
	var out []sectionInfo
	for _, name := range []string{
		abi.SectionSelRefs,
		abi.SectionClassList,
		abi.SectionClassRefs,
		abi.SectionSuperRefs,
		abi.SectionCatList,
	} {
		sec, ok := found[name]
		if !ok {
			continue
		}
		entries := metadata.EntryCount(sec)
		if name == abi.SectionSelRefs {
			entries = int(sec.Size / abi.PtrSize)
		}
		out = append(out, sectionInfo{
			Segment: sec.Segment,
			Name:    sec.Name,
			Addr:    sec.Addr,
			Size:    sec.Size,
			Entries: entries,
		})
	}
	return out
}

func printSections(img *image.Image, segments []string) error {
	secs := collectSections(img, segments)
	if jsonOut {
		return printJSON(secs)
	}
	if len(secs) == 0 {
		printInfo("No Objective-C metadata in %s\n", img.Name())
		return nil
	}
	printInfo("\nSections of %s:\n", img.Name())
	for _, s := range secs {
		printInfo("  %-14s %-18s 0x%012x %6d bytes %5d entries\n", s.Segment, s.Name, s.Addr, s.Size, s.Entries)
	}
	return nil
}
