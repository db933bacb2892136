package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclProfile is the shape of an HCL profile:
//
//	segments   = ["__DATA"]
//	collision  = "skip"
//	class "NSString" {
//	  super = "NSObject"
//	}
//	log {
//	  level = "debug"
//	}
type hclProfile struct {
	Segments    []string    `hcl:"segments,optional"`
	MaxPasses   *int        `hcl:"max_passes,optional"`
	Collision   *string     `hcl:"collision,optional"`
	Layout      *string     `hcl:"layout,optional"`
	RootClasses []string    `hcl:"root_classes,optional"`
	Classes     []*hclClass `hcl:"class,block"`
	Log         *hclLog     `hcl:"log,block"`
}

type hclClass struct {
	Name  string `hcl:"name,label"`
	Super string `hcl:"super,optional"`
}

type hclLog struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

func parseHCL(data []byte, filename string) (*Profile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	var raw hclProfile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %w", diags)
	}

	p := &Profile{
		Segments:    raw.Segments,
		RootClasses: raw.RootClasses,
	}
	if raw.MaxPasses != nil {
		p.MaxPasses = *raw.MaxPasses
	}
	if raw.Collision != nil {
		p.Collision = *raw.Collision
	}
	if raw.Layout != nil {
		p.Layout = *raw.Layout
	}
	for _, c := range raw.Classes {
		p.Classes = append(p.Classes, ClassSeed{Name: c.Name, Super: c.Super})
	}
	if raw.Log != nil {
		p.Log = Log{Level: raw.Log.Level, Format: raw.Log.Format}
	}
	return p, nil
}
