package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/vk/monogrid/internal/config"
	"github.com/vk/monogrid/internal/copyfiles"
	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/donefile"
	"github.com/vk/monogrid/internal/globs"
	"github.com/vk/monogrid/internal/pkgmanifest"
	"github.com/vk/monogrid/internal/task"
	"github.com/vk/monogrid/internal/vcs"
)

// Graph holds every package node and the task nodes spanning them.
type Graph struct {
	Packages map[string]*PackageNode
	Tasks    map[string]*TaskNode
}

// TaskList returns the task nodes in a stable order.
func (g *Graph) TaskList() []*TaskNode {
	list := make([]*TaskNode, 0, len(g.Tasks))
	for _, n := range g.Tasks {
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Build constructs the complete, validated task graph for a session.
func Build(ctx context.Context, model *config.Model, packages []*pkgmanifest.Package, bctx *BuildContext) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "packages", len(packages))

	g := &Graph{
		Packages: make(map[string]*PackageNode),
		Tasks:    make(map[string]*TaskNode),
	}

	// First pass: create package nodes and their task nodes.
	for _, pkg := range packages {
		pn := &PackageNode{Pkg: pkg, Ctx: bctx}
		g.Packages[pkg.Name] = pn

		ignorePath := model.Workspace.IgnoreFile
		if !filepath.IsAbs(ignorePath) {
			ignorePath = filepath.Join(pkg.Dir, ignorePath)
		}
		matcher, err := globs.LoadIgnoreFile(ignorePath)
		if err != nil {
			return nil, err
		}

		for _, rule := range sortedRules(model) {
			command, declared := pkg.Script(rule.Name)
			if !declared {
				continue
			}
			leaf, err := buildLeaf(pkg, rule, command, matcher, bctx)
			if err != nil {
				return nil, fmt.Errorf("package %s, task %s: %w", pkg.Name, rule.Name, err)
			}
			tn := &TaskNode{
				ID:         leaf.Name(),
				Leaf:       leaf,
				Rule:       rule,
				Pkg:        pn,
				Deps:       make(map[string]*TaskNode),
				Dependents: make(map[string]*TaskNode),
			}
			g.Tasks[tn.ID] = tn
			pn.Tasks = append(pn.Tasks, tn)
		}
	}
	logger.Debug("Build: Node creation complete.", "task_count", len(g.Tasks))

	// Second pass: link dependency edges.
	if err := g.linkEdges(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Build: Edge linking complete.")

	if err := g.detectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Cycle detection passed.")

	g.initCounters()
	logger.Debug("Build: Graph construction successful.")
	return g, nil
}

// sortedRules returns the model's task rules in name order so graph
// construction is deterministic.
func sortedRules(model *config.Model) []*config.TaskRule {
	rules := make([]*config.TaskRule, 0, len(model.Tasks))
	for _, r := range model.Tasks {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// buildLeaf constructs the leaf task for one (package, rule) pair.
func buildLeaf(pkg *pkgmanifest.Package, rule *config.TaskRule, command string, matcher *ignore.GitIgnore, bctx *BuildContext) (*task.Leaf, error) {
	configFiles := make([]string, len(rule.ConfigFiles))
	for i, cf := range rule.ConfigFiles {
		configFiles[i] = filepath.Join(pkg.Dir, cf)
	}

	base := &task.Leaf{
		PackageName:     pkg.Name,
		TaskName:        rule.Name,
		PackageDir:      pkg.Dir,
		Command:         command,
		Weight:          rule.Weight,
		InProcess:       rule.InProcess,
		ConfigFiles:     configFiles,
		FallbackVersion: bctx.LockFingerprint,
		Store:           donefile.NewStore(pkg.Dir),
	}

	var leaf *task.Leaf
	switch rule.Kind {
	case config.KindCopy:
		built, err := copyfiles.NewTask(base, matcher)
		if err != nil {
			return nil, err
		}
		leaf = built
	case config.KindNoop:
		leaf = task.NewNoop(base)
	default: // exec and declarative share the glob-defined contract
		leaf = task.NewDeclarative(base, matcher, task.DeclarativeDef{
			InputGlobs:  rule.InputGlobs,
			OutputGlobs: rule.OutputGlobs,
			Scope:       ignoreScope(rule.IgnoreScope),
		})
	}

	leaf.Def.ForbidRecheck = rule.ForbidRecheck
	if rule.TrackGitState {
		leaf.Def.Augment = gitStateAugment(bctx.VCSRoot)
	}
	return leaf, nil
}

func ignoreScope(name config.IgnoreScopeName) task.IgnoreScope {
	switch name {
	case config.ScopeInputs:
		return task.IgnoreInputs
	case config.ScopeOutputs:
		return task.IgnoreOutputs
	case config.ScopeBoth:
		return task.IgnoreBoth
	default:
		return task.IgnoreNone
	}
}

// gitStateAugment records the commit id and a working-tree modification
// digest in the done-file. Outside a repository the task is uncacheable.
func gitStateAugment(vcsRoot string) func(context.Context, *donefile.Content) error {
	return func(ctx context.Context, content *donefile.Content) error {
		if vcsRoot == "" {
			return task.ErrNotCacheable
		}
		commit, err := vcs.Head(ctx, vcsRoot)
		if err != nil {
			return task.ErrNotCacheable
		}
		worktree, err := vcs.WorkingTreeHash(ctx, vcsRoot)
		if err != nil {
			return task.ErrNotCacheable
		}
		if content.Extra == nil {
			content.Extra = make(map[string]string)
		}
		content.Extra["commit"] = commit
		content.Extra["worktree"] = worktree
		return nil
	}
}

// linkEdges establishes dependency edges from the pipeline rules. "name"
// references the task in the same package; "^name" references it in every
// declared dependency package that exposes it.
func (g *Graph) linkEdges(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, tn := range g.TaskList() {
		for _, dep := range tn.Rule.DependsOn {
			if name, crossPkg := strings.CutPrefix(dep, "^"); crossPkg {
				for _, other := range g.Packages {
					if other.Pkg.Name == tn.Pkg.Pkg.Name || !tn.Pkg.Pkg.DependsOn(other.Pkg.Name) {
						continue
					}
					if depNode, ok := g.Tasks[other.Pkg.Name+"#"+name]; ok {
						addEdge(depNode, tn)
					}
				}
				continue
			}
			depNode, ok := g.Tasks[tn.Pkg.Pkg.Name+"#"+dep]
			if !ok {
				// The package simply does not declare that script; the
				// dependency is vacuously satisfied.
				logger.Debug("Dependency task not declared, edge dropped.", "task", tn.ID, "dependency", dep)
				continue
			}
			addEdge(depNode, tn)
		}
	}
	return nil
}

// addEdge records "to depends on from".
func addEdge(from, to *TaskNode) {
	if from == to {
		return
	}
	to.Deps[from.ID] = from
	from.Dependents[to.ID] = to
}

func (g *Graph) initCounters() {
	for _, n := range g.Tasks {
		n.initCounters()
	}
}
