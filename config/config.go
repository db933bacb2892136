// Package config handles load profiles: which segments to search, how the
// class resolver and collision policy behave, which runtime layout and
// classes an in-process runtime starts from, and logging.
//
// Profiles are TOML (.toml) or HCL (.hcl) files:
//
//	segments     = ["__DATA", "__DATA_CONST"]
//	max_passes   = 16
//	collision    = "skip"
//	layout       = "objc4-818"
//	root_classes = ["NSObject"]
//
//	[[class]]
//	name  = "NSString"
//	super = "NSObject"
//
//	[log]
//	level  = "debug"
//	format = "json"
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/host"
	"github.com/joshuapare/objcload/host/memrt"
	"github.com/joshuapare/objcload/loader"
	"github.com/joshuapare/objcload/register"
)

// Profile is a load profile.
type Profile struct {
	Segments    []string    `toml:"segments"`
	MaxPasses   int         `toml:"max_passes"`
	Collision   string      `toml:"collision"`
	Layout      string      `toml:"layout"`
	RootClasses []string    `toml:"root_classes"`
	Classes     []ClassSeed `toml:"class"`
	Log         Log         `toml:"log"`

	// Path is the file the profile was loaded from, empty for Default.
	Path string `toml:"-"`
}

// ClassSeed names a class the runtime knows before any image is loaded.
type ClassSeed struct {
	Name  string `toml:"name"`
	Super string `toml:"super"`
}

// Log configures the CLI logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the profile used when no file is given.
func Default() *Profile {
	p := &Profile{}
	p.applyDefaults()
	return p
}

// Load reads a profile, choosing the decoder by file extension.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var p *Profile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		p, err = parseTOML(data)
	case ".hcl":
		p, err = parseHCL(data, path)
	default:
		return nil, fmt.Errorf("config: unsupported profile format %q (want .toml or .hcl)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	p.Path = path

	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func parseTOML(data []byte) (*Profile, error) {
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyDefaults() {
	if len(p.Segments) == 0 {
		p.Segments = append([]string(nil), abi.DefaultSegments...)
	}
	if p.Collision == "" {
		p.Collision = register.CollisionFail.String()
	}
	if p.Layout == "" {
		p.Layout = abi.DefaultLayoutVersion
	}
	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	if p.Log.Format == "" {
		p.Log.Format = "text"
	}
}

// Validate checks every field that has a closed set of values.
func (p *Profile) Validate() error {
	if p.MaxPasses < 0 {
		return fmt.Errorf("config: max_passes must not be negative, got %d", p.MaxPasses)
	}
	if _, err := register.ParseCollisionPolicy(p.Collision); err != nil {
		return err
	}
	if _, err := abi.LookupRuntimeLayout(p.Layout); err != nil {
		return err
	}
	if _, err := ParseLevel(p.Log.Level); err != nil {
		return err
	}
	switch p.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", p.Log.Format)
	}
	for _, c := range p.Classes {
		if c.Name == "" {
			return fmt.Errorf("config: class seed without a name")
		}
	}
	return nil
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
	return l, nil
}

// LoaderOptions turns the profile into loader options.
func (p *Profile) LoaderOptions(logger *slog.Logger) (loader.Options, error) {
	policy, err := register.ParseCollisionPolicy(p.Collision)
	if err != nil {
		return loader.Options{}, err
	}
	return loader.Options{
		Segments:  p.Segments,
		Logger:    logger,
		MaxPasses: p.MaxPasses,
		Collision: policy,
	}, nil
}

// NewRuntime returns an in-process runtime with the profile's layout and
// seeded with its root classes and class seeds, in that order. A seed's
// superclass must be seeded before it.
func (p *Profile) NewRuntime() (*memrt.Runtime, error) {
	layout, err := abi.LookupRuntimeLayout(p.Layout)
	if err != nil {
		return nil, err
	}
	rt := memrt.New(memrt.WithLayout(layout))
	for _, name := range p.RootClasses {
		if _, err := rt.DefineClass(name, host.Nil); err != nil {
			return nil, fmt.Errorf("config: root class: %w", err)
		}
	}
	for _, c := range p.Classes {
		super := host.Nil
		if c.Super != "" {
			if super = rt.LookupClass(c.Super); super == host.Nil {
				return nil, fmt.Errorf("config: class %s: superclass %s not seeded", c.Name, c.Super)
			}
		}
		if _, err := rt.DefineClass(c.Name, super); err != nil {
			return nil, fmt.Errorf("config: class: %w", err)
		}
	}
	return rt, nil
}
