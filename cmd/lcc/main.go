package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/compiler"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/target"
)

// aluminiumBanner is the easter egg spec.md §6 names without specifying its
// text; lcc's backend (this repo) is wholly a rewrite of the teacher's
// ARM64 core to x86-64, so the banner nods at that.
const aluminiumBanner = "lcc: now 100% aluminium, 0% ARM64\n"

// frontend builds an IR Module from source text for one of the languages
// spec.md §6 names by extension. None are registered in this build: a
// frontend is, per the "Frontend -> Core contract", an external
// collaborator that constructs the Module and hands it to the core; this
// repo is that core. See DESIGN.md.
type frontend func(cctx *cc.Context, path string, text []byte) (*ir.Module, error)

var frontends = map[target.CallConv]frontend{}

var extensionLang = map[string]target.CallConv{
	".int":  target.ConvIntercept,
	".laye": target.ConvLaye,
	".c":    target.ConvC,
}

var langNames = map[string]target.CallConv{
	"int":       target.ConvIntercept,
	"intercept": target.ConvIntercept,
	"laye":      target.ConvLaye,
	"c":         target.ConvC,
}

type options struct {
	output     string
	verbose    bool
	ast        bool
	syntaxOnly bool
	lang       string
	aluminium  bool
	input      string
}

// parseArgs hand-parses spec.md §6's flag table. nikand.dev/go/cli's
// Command exposes Args/Action/RunAndExit but no confirmed Flag type
// anywhere in the source this core was grounded on (only its bare
// Args-as-positional-list usage in the teacher's own cmd/slow), so flags
// are recognised here and stripped before the remaining positional
// argument is handed to cli.Args.
func parseArgs(argv []string) (options, error) {
	var o options
	var positional []string

	for i := 0; i < len(argv); i++ {
		a := argv[i]
		switch {
		case a == "-o":
			i++
			if i >= len(argv) {
				return o, errors.New("-o requires a path")
			}
			o.output = argv[i]
		case strings.HasPrefix(a, "-o="):
			o.output = strings.TrimPrefix(a, "-o=")
		case a == "-v":
			o.verbose = true
		case a == "--ast":
			o.ast = true
		case a == "--syntax-only":
			o.syntaxOnly = true
		case a == "-x":
			i++
			if i >= len(argv) {
				return o, errors.New("-x requires a language name")
			}
			o.lang = argv[i]
		case strings.HasPrefix(a, "-x="):
			o.lang = strings.TrimPrefix(a, "-x=")
		case a == "--aluminium":
			o.aluminium = true
		default:
			positional = append(positional, a)
		}
	}

	if o.aluminium {
		return o, nil
	}

	if len(positional) != 1 {
		return o, errors.New("exactly one input file required, got %d", len(positional))
	}
	o.input = positional[0]

	return o, nil
}

func languageFor(o options) (target.CallConv, error) {
	if o.lang != "" {
		conv, ok := langNames[strings.ToLower(o.lang)]
		if !ok {
			return 0, errors.New("unrecognized -x language %q", o.lang)
		}
		return conv, nil
	}

	ext := strings.ToLower(filepath.Ext(o.input))
	conv, ok := extensionLang[ext]
	if !ok {
		return 0, errors.New("cannot infer language from extension %q; use -x", ext)
	}
	return conv, nil
}

func main() {
	app := &cli.Command{
		Name:        "lcc",
		Description: "lcc compiles a single source file to x86-64 assembly or a relocatable object",
		Action:      run,
		Args:        cli.Args{},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

// run is the single cli.Command Action. The ICE recover lives here, at the
// top of the pipeline, per cc.Fatal's doc comment: panics carrying cc.ICE
// are an internal compiler error (spec.md §7), reported by identifying the
// violated invariant and aborting, not by a bare Go stack trace.
func run(c *cli.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ice, ok := r.(cc.ICE)
			if !ok {
				panic(r)
			}
			fmt.Fprintln(os.Stderr, ice.Error())
			os.Exit(2)
		}
	}()

	o, perr := parseArgs(os.Args[1:])
	if perr != nil {
		return perr
	}

	if o.aluminium {
		fmt.Print(aluminiumBanner)
		return nil
	}

	if o.verbose {
		fmt.Fprintf(os.Stderr, "lcc: %s\n", o.input)
	}

	conv, err := languageFor(o)
	if err != nil {
		return err
	}

	text, err := os.ReadFile(o.input)
	if err != nil {
		return errors.Wrap(err, "read %s", o.input)
	}

	fe, ok := frontends[conv]
	if !ok {
		return errors.New("no frontend registered for %s; this build of lcc implements the core only (spec.md §6's Frontend -> Core contract)", conv)
	}

	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	tgt := target.Default()
	cctx := cc.NewContext(tgt)
	cctx.Verbose = o.verbose

	m, err := fe(cctx, o.input, text)
	if err != nil {
		return errors.Wrap(err, "parse %s", o.input)
	}
	if o.ast || o.syntaxOnly {
		return nil
	}
	if err := cctx.CheckStage("frontend"); err != nil {
		return err
	}

	format := compiler.Assembly
	if o.output != "" {
		switch strings.ToLower(filepath.Ext(o.output)) {
		case ".o", ".obj":
			format = compiler.Object
		}
	}

	entry := strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input))
	obj, err := compiler.CompileModule(ctx, cctx, m, entry, format)
	if err != nil {
		return err
	}

	if o.output == "" {
		_, err = os.Stdout.Write(obj)
		return err
	}
	return os.WriteFile(o.output, obj, 0o644)
}
