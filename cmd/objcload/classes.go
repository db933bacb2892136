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
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes <image>",
		Short: "Decode the class records of an image",
		Long: `The classes command decodes every class named by the class list of a
Mach-O image, without registering anything.

Example:
  objcload classes libWidgets.dylib
  objcload classes libWidgets.dylib --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(args)
		},
	}
}

type classInfo struct {
	Name         string `json:"name"`
	Record       uint64 `json:"record"`
	Meta         uint64 `json:"meta"`
	Superclass   string `json:"superclass,omitempty"`
	Flags        uint32 `json:"flags"`
	InstanceSize uint32 `json:"instance_size"`
	Methods      int    `json:"methods"`
	ClassMethods int    `json:"class_methods"`
	Swift        bool   `json:"swift,omitempty"`
}

func runClasses(args []string) error {
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
	return printClasses(img, p.Segments)
}

func collectClasses(img *image.Image, segments []string) ([]classInfo, error) {
	sec, ok := loader.FindSections(img, segments)[abi.SectionClassList]
	if !ok {
		return nil, nil
	}
	recs, err := metadata.Classes(img, sec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode class list: %w", err)
	}

	out := make([]classInfo, 0, len(recs))
	for _, r := range recs {
		info := classInfo{
			Name:         r.Name(),
			Record:       r.Addr,
			Meta:         r.ISA,
			Flags:        r.RO.Flags,
			InstanceSize: r.RO.InstanceSize,
			Swift:        r.IsSwift(),
		}
		switch {
		case r.IsRoot():
		case img.Contains(r.Superclass):
			if name, err := metadata.ClassName(img, r.Superclass); err == nil {
				info.Superclass = name
			}
		default:
			info.Superclass = fmt.Sprintf("0x%x (external)", r.Superclass)
		}
		if ml, err := metadata.ReadMethodList(img, r.RO.BaseMethods); err == nil {
			info.Methods = ml.Len()
		}
		if meta, err := metadata.ReadClass(img, r.ISA); err == nil {
			if ml, err := metadata.ReadMethodList(img, meta.RO.BaseMethods); err == nil {
				info.ClassMethods = ml.Len()
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func printClasses(img *image.Image, segments []string) error {
	classes, err := collectClasses(img, segments)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(classes)
	}
	if len(classes) == 0 {
		printInfo("No classes in %s\n", img.Name())
		return nil
	}
	printInfo("\nClasses of %s:\n", img.Name())
	for _, c := range classes {
		super := c.Superclass
		if super == "" {
			super = "(root)"
		}
		printInfo("  %-24s : %-24s %3d methods %3d class methods\n", c.Name, super, c.Methods, c.ClassMethods)
		printVerbose("    record 0x%x meta 0x%x flags 0x%x size %d\n", c.Record, c.Meta, c.Flags, c.InstanceSize)
	}
	return nil
}
