// Package selftest checks a target against the library's contract: the
// reference scenarios of the C demo program plus randomised properties.
// Any abi.Target can be checked, so the in-process and wasm paths are held
// to the same results.
package selftest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/cffi/abi"
)

// Result is the outcome of one check.
type Result struct {
	Name   string
	Detail string
	Passed bool
}

// Report collects the results of one run.
type Report struct {
	Target  string
	Results []Result
}

// Failed returns the failing results.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// Err combines every failure into one error, or returns nil.
func (r Report) Err() error {
	var err error
	for _, res := range r.Failed() {
		err = multierr.Append(err, fmt.Errorf("%s: %s: %s", r.Target, res.Name, res.Detail))
	}
	return err
}

// Suite configures a run.
type Suite struct {
	// Seed feeds the property generators.
	Seed uint64
	// Iterations is the number of random cases per property.
	Iterations int
}

// DefaultSuite returns a fixed-seed suite so runs are reproducible.
func DefaultSuite() Suite {
	return Suite{Seed: 0x5eed, Iterations: 64}
}

// Run checks target with the default suite.
func Run(ctx context.Context, target abi.Target) Report {
	return DefaultSuite().Run(ctx, fmt.Sprint(target), target)
}

// Run executes every scenario and property against target.
func (s Suite) Run(ctx context.Context, name string, target abi.Target) Report {
	report := Report{Target: name}
	c := &checker{
		ctx:    ctx,
		target: target,
		rng:    rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15)),
		n:      max(s.Iterations, 1),
	}
	for _, chk := range append(scenarios(), properties()...) {
		if ctx.Err() != nil {
			report.Results = append(report.Results, Result{Name: chk.name, Detail: ctx.Err().Error()})
			continue
		}
		res := Result{Name: chk.name, Passed: true}
		if err := chk.run(c); err != nil {
			res.Passed = false
			res.Detail = err.Error()
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// Named pairs a target with the name it is reported under.
type Named struct {
	Name   string
	Target abi.Target
}

// RunAll checks every target concurrently. Targets own separate memories, so
// they never share state. Reports come back in the order of targets.
func (s Suite) RunAll(ctx context.Context, targets []Named) ([]Report, error) {
	reports := make([]Report, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			reports[i] = s.Run(gctx, t.Name, t.Target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

type check struct {
	name string
	run  func(c *checker) error
}

type checker struct {
	ctx    context.Context
	target abi.Target
	rng    *rand.Rand
	n      int
}

func (c *checker) call(name string, args ...any) ([]any, error) {
	return abi.Invoke(c.ctx, c.target, name, args...)
}

// expect calls name and compares every returned value with want.
func (c *checker) expect(name string, args []any, want ...any) error {
	got, err := c.call(name, args...)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("%s(%s) = %s, want %s", name, format(args), format(got), format(want))
	}
	return nil
}

func format(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = abi.FormatValue(v)
	}
	return strings.Join(parts, ", ")
}
