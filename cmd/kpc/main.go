package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/xplshn/kaskell/pkg/astjson"
	"github.com/xplshn/kaskell/pkg/cli"
	"github.com/xplshn/kaskell/pkg/codegen"
	"github.com/xplshn/kaskell/pkg/compiler"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/util"
)

func main() {
	app := cli.NewApp("kpc")
	app.Synopsis = "[options] <program.json>"
	app.Description = "Resolves, type checks and compiles a parsed kaskell program to P-machine code."
	app.Repository = "<https://github.com/xplshn/kaskell>"

	var (
		outFile  string
		source   string
		dialect  string
		dump     bool
		verbose  bool
		pedantic bool
		wFlags   []string
		fFlags   []string
	)

	cfg := config.NewConfig()

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "out.p", "Place the output into <file>.", "file")
	fs.String(&source, "source", "s", "", "Source file the positions refer to, for error excerpts.", "file")
	fs.String(&dialect, "dialect", "", "Pa", "Output dialect (P, Pa).", "dialect")
	fs.Bool(&dump, "dump", "d", false, "Print the instruction stream to stdout instead of writing a file.")
	fs.Bool(&verbose, "verbose", "v", false, "Report the progress of every phase.")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings demanded by the strict dialect.")
	fs.Prefix(&wFlags, "W", groupOf("Warning Flags", cfg.Warnings))
	fs.Prefix(&fFlags, "F", groupOf("Feature Flags", cfg.Features))

	app.Action = func(args []string) error {
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "kpc: exactly one input file expected")
			return errors.New("bad usage")
		}
		input := args[0]

		if pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		if err := cfg.ApplyDialect(dialect); err != nil {
			fmt.Fprintf(os.Stderr, "kpc: %v\n", err)
			return err
		}
		cfg.ProcessFlags(append(wFlags, fFlags...))

		records := []util.SourceFileRecord{{Name: input}}
		if source != "" {
			content, err := os.ReadFile(source)
			if err != nil {
				fmt.Fprintf(os.Stderr, "kpc: %v\n", err)
				return err
			}
			records[0] = util.SourceFileRecord{Name: source, Content: []rune(string(content))}
		}
		renderer := util.NewRenderer(records)

		p := compiler.New(cfg)
		if verbose {
			fmt.Println("----------------------")
			p.Logf = func(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
			fmt.Printf("Decoding '%s'...\n", input)
		}

		prog, err := astjson.DecodeFile(input, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kpc: %v\n", err)
			return err
		}

		stream, diags, err := p.Compile(prog)
		if n := renderer.RenderAll(os.Stderr, diags); n > 0 {
			fmt.Fprintf(os.Stderr, "%d error(s)\n", n)
		}
		if err != nil {
			if !errors.Is(err, compiler.ErrFailed) {
				fmt.Fprintf(os.Stderr, "kpc: %v\n", err)
			}
			return err
		}

		if dump {
			return stream.Render(os.Stdout, cfg)
		}
		if verbose {
			fmt.Printf("Writing '%s'...\n", outFile)
		}
		if err := codegen.WriteFile(outFile, stream, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "kpc: %v\n", err)
			return err
		}
		if verbose {
			fmt.Println("----------------------")
			fmt.Println("Done!")
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil && !errors.Is(err, cli.ErrHelp) {
		os.Exit(1)
	}
}

func groupOf[K comparable](title string, infos map[K]config.Info) cli.Group {
	g := cli.Group{Title: title}
	for _, info := range infos {
		g.Entries = append(g.Entries, cli.GroupEntry{Name: info.Name, Usage: info.Description, Enabled: info.Enabled})
	}
	return g
}
