package task

import (
	"context"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/vk/monogrid/internal/globs"
)

// IgnoreScope says which resolutions of a declarative task apply the
// version-control ignore rules. Inputs and outputs are independently
// scopeable: a task may want inputs filtered by ignore rules while its
// outputs are collected even though they are ignored, or vice versa.
type IgnoreScope int

const (
	IgnoreNone IgnoreScope = iota
	IgnoreInputs
	IgnoreOutputs
	IgnoreBoth
)

func (s IgnoreScope) inputs() bool  { return s == IgnoreInputs || s == IgnoreBoth }
func (s IgnoreScope) outputs() bool { return s == IgnoreOutputs || s == IgnoreBoth }

// DeclarativeDef is the static definition of a task kind with no special
// logic beyond "these inputs produce those outputs".
type DeclarativeDef struct {
	InputGlobs  []string
	OutputGlobs []string
	Scope       IgnoreScope
}

// NewDeclarative completes a Leaf whose input and output resolution is
// exactly "resolve these globs under the package directory with the ignore
// scope applied per side". It composes with the default up-to-date
// algorithm unchanged; most simple file-to-file tools are expressed this
// way. The leaf is mutated in place and returned.
func NewDeclarative(leaf *Leaf, matcher *ignore.GitIgnore, def DeclarativeDef) *Leaf {
	inputRes := &globs.Resolver{Base: leaf.PackageDir}
	if def.Scope.inputs() {
		inputRes.Options.Ignore = matcher
	}
	outputRes := &globs.Resolver{Base: leaf.PackageDir}
	if def.Scope.outputs() {
		outputRes.Options.Ignore = matcher
	}

	leaf.Def = Definition{
		InputFiles: func(ctx context.Context) ([]string, error) {
			return inputRes.Resolve(def.InputGlobs...)
		},
		OutputFiles: func(ctx context.Context) ([]string, error) {
			return outputRes.Resolve(def.OutputGlobs...)
		},
	}
	return leaf
}

// NewNoop turns the given leaf into a weight-0 task that runs no command.
// Packages declare these to give dependents a stable anchor without doing
// any work; with empty input and output sets the default algorithm marks
// them up to date after their first session.
func NewNoop(leaf *Leaf) *Leaf {
	leaf.Command = ""
	leaf.Weight = 0
	leaf.InProcess = true
	leaf.Def = Definition{}
	return leaf
}
