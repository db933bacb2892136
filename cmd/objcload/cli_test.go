package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/objcload/abi"
	"github.com/joshuapare/objcload/config"
	"github.com/joshuapare/objcload/image/builder"
	"github.com/joshuapare/objcload/register"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}

// resetFlags restores the global flags after a test changes them.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		verbose, quiet, jsonOut = false, false, false
		configPath, logLevel, logFormat = "", "", ""
		cborPath, strict, showJournal = "", false, false
	})
}

func TestSelftest(t *testing.T) {
	resetFlags(t)
	logLevel = "error"

	out, err := captureOutput(t, runSelftest)
	require.NoError(t, err)
	assert.Contains(t, out, "Registration of sample")
	assert.Contains(t, out, "3 live in 3 passes")
	assert.Contains(t, out, "Base(Extras) added=2 failed=0")
	assert.Contains(t, out, "Selftest passed")
}

func TestSelftest_JSONAndCBOR(t *testing.T) {
	resetFlags(t)
	logLevel = "error"
	jsonOut = true
	cborPath = filepath.Join(t.TempDir(), "report.cbor")

	out, err := captureOutput(t, runSelftest)
	require.NoError(t, err)

	var got register.Report
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "sample", got.Image)
	assert.Equal(t, 3, got.Live())

	data, err := os.ReadFile(cborPath)
	require.NoError(t, err)
	back, err := register.UnmarshalReport(data)
	require.NoError(t, err)
	assert.Equal(t, got.Session, back.Session)
}

func TestSelftest_Profile(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	configPath = filepath.Join(dir, "p.toml")
	// A live class named like one of the sample classes makes the load collide.
	require.NoError(t, os.WriteFile(configPath, []byte(`
root_classes = ["Widget"]
[log]
level = "error"
`), 0o600))

	_, err := captureOutput(t, runSelftest)
	var ce *register.CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Widget", ce.Name)
}

func TestPrintSections(t *testing.T) {
	resetFlags(t)
	img, _ := builder.Sample(0)

	out, err := captureOutput(t, func() error { return printSections(img, abi.DefaultSegments) })
	require.NoError(t, err)
	assert.Contains(t, out, "__objc_classlist")
	assert.Contains(t, out, "__DATA_CONST")

	secs := collectSections(img, abi.DefaultSegments)
	require.Len(t, secs, 5)
	counts := map[string]int{}
	for _, s := range secs {
		counts[s.Name] = s.Entries
	}
	assert.Equal(t, 3, counts[abi.SectionSelRefs])
	assert.Equal(t, 3, counts[abi.SectionClassList])
	assert.Equal(t, 1, counts[abi.SectionCatList])

	empty := builder.New(0).Build("empty")
	out, err = captureOutput(t, func() error { return printSections(empty, nil) })
	require.NoError(t, err)
	assert.Contains(t, out, "No Objective-C metadata")
}

func TestPrintClasses(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	img, _ := builder.Sample(0)

	out, err := captureOutput(t, func() error { return printClasses(img, nil) })
	require.NoError(t, err)

	var classes []classInfo
	require.NoError(t, json.Unmarshal([]byte(out), &classes))
	require.Len(t, classes, 3)
	assert.Equal(t, "Gadget", classes[0].Name)
	assert.Equal(t, "Widget", classes[0].Superclass)
	assert.Equal(t, 1, classes[0].Methods)
	assert.Equal(t, 1, classes[0].ClassMethods)
	assert.Empty(t, classes[2].Superclass, "Base is a root class")
	assert.NotZero(t, classes[2].Flags&abi.RORoot)
}

func TestNewLogger(t *testing.T) {
	resetFlags(t)
	var buf bytes.Buffer

	logger, err := newLogger(config.Default(), &buf)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	verbose = true
	logFormat = "json"
	logger, err = newLogger(config.Default(), &buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	logLevel = "nope"
	_, err = newLogger(config.Default(), &buf)
	require.Error(t, err)
}

func TestRunRegister_NotMachO(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "x.dylib")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

	_, err := captureOutput(t, func() error { return runRegister([]string{path}) })
	require.Error(t, err)
	_, err = captureOutput(t, func() error { return runSections([]string{path}) })
	require.Error(t, err)
	_, err = captureOutput(t, func() error { return runClasses([]string{path}) })
	require.Error(t, err)
}
