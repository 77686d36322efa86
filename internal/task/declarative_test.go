package task

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/vk/monogrid/internal/donefile"
	"github.com/vk/monogrid/internal/globs"
)

// declarativeFixture lays out one tracked and one ignored file on each side
// of a declarative task, with a compiled ignore matcher covering both.
func declarativeFixture(t *testing.T) (string, *ignore.GitIgnore) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "keep.ts"), "export {}")
	writeFile(t, filepath.Join(dir, "src", "gen.ts"), "export {}")
	writeFile(t, filepath.Join(dir, "out", "keep.js"), "var a")
	writeFile(t, filepath.Join(dir, "out", "gen.js"), "var b")
	writeFile(t, filepath.Join(dir, "ignorefile"), "src/gen.ts\nout/gen.js\n")

	matcher, err := globs.LoadIgnoreFile(filepath.Join(dir, "ignorefile"))
	require.NoError(t, err)
	require.NotNil(t, matcher)
	return dir, matcher
}

func declarativeLeaf(dir string) *Leaf {
	return &Leaf{
		PackageName: "pkg-a",
		TaskName:    "build",
		PackageDir:  dir,
		Store:       donefile.NewStore(dir),
	}
}

func TestDeclarativeIgnoreScopeInputsOnly(t *testing.T) {
	dir, matcher := declarativeFixture(t)

	leaf := NewDeclarative(declarativeLeaf(dir), matcher, DeclarativeDef{
		InputGlobs:  []string{"src/**/*.ts"},
		OutputGlobs: []string{"out/**/*.js"},
		Scope:       IgnoreInputs,
	})

	ctx := testCtx()
	inputs, err := leaf.CacheInputFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "src", "keep.ts")}, inputs,
		"ignored source files drop out of the input set")

	outputs, err := leaf.CacheOutputFiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "out", "keep.js"),
		filepath.Join(dir, "out", "gen.js"),
	}, outputs, "an inputs-only scope leaves outputs unfiltered")
}

func TestDeclarativeIgnoreScopeOutputsOnly(t *testing.T) {
	dir, matcher := declarativeFixture(t)

	leaf := NewDeclarative(declarativeLeaf(dir), matcher, DeclarativeDef{
		InputGlobs:  []string{"src/**/*.ts"},
		OutputGlobs: []string{"out/**/*.js"},
		Scope:       IgnoreOutputs,
	})

	ctx := testCtx()
	inputs, err := leaf.CacheInputFiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "src", "keep.ts"),
		filepath.Join(dir, "src", "gen.ts"),
	}, inputs, "an outputs-only scope leaves inputs unfiltered")

	outputs, err := leaf.CacheOutputFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "out", "keep.js")}, outputs)
}

func TestDeclarativeIgnoreScopeBothAndNone(t *testing.T) {
	dir, matcher := declarativeFixture(t)
	ctx := testCtx()

	both := NewDeclarative(declarativeLeaf(dir), matcher, DeclarativeDef{
		InputGlobs:  []string{"src/**/*.ts"},
		OutputGlobs: []string{"out/**/*.js"},
		Scope:       IgnoreBoth,
	})
	inputs, err := both.CacheInputFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, inputs, 1)
	outputs, err := both.CacheOutputFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, outputs, 1)

	none := NewDeclarative(declarativeLeaf(dir), matcher, DeclarativeDef{
		InputGlobs:  []string{"src/**/*.ts"},
		OutputGlobs: []string{"out/**/*.js"},
		Scope:       IgnoreNone,
	})
	inputs, err = none.CacheInputFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, inputs, 2)
	outputs, err = none.CacheOutputFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, outputs, 2)
}

func TestConstructorsCompleteLeafInPlace(t *testing.T) {
	dir := t.TempDir()

	base := declarativeLeaf(dir)
	built := NewDeclarative(base, nil, DeclarativeDef{})
	assert.Same(t, base, built)
	assert.NotNil(t, built.Def.InputFiles)
	assert.NotNil(t, built.Def.OutputFiles)

	noop := declarativeLeaf(dir)
	noop.Command = "anything"
	noop.Weight = 5
	built = NewNoop(noop)
	assert.Same(t, noop, built)
	assert.Empty(t, built.Command)
	assert.Zero(t, built.Weight)
	assert.True(t, built.InProcess)
}
