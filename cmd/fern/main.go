package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kr/pretty"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/codegen"
	"github.com/NijanthanR/fern/internal/parser"
	"github.com/NijanthanR/fern/internal/repl"
	"github.com/NijanthanR/fern/internal/types"
)

const version = "0.3.0"

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: fern <command> [arguments]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  build <file.fern>   compile to a native executable")
	fmt.Fprintln(os.Stderr, "  check <file.fern>   parse and type-check only")
	fmt.Fprintln(os.Stderr, "  emit <file.fern>    print the generated QBE IL")
	fmt.Fprintln(os.Stderr, "  repl                start an interactive session")
	fmt.Fprintln(os.Stderr, "  version             print the version")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "build":
		cmdBuild(os.Args[2:])
	case "check":
		cmdCheck(os.Args[2:])
	case "emit":
		cmdEmit(os.Args[2:])
	case "repl":
		cmdRepl(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("fern %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "fern: unknown command %q\n", os.Args[1])
		usage()
	}
}

// frontend runs lexing, parsing and checking, exiting with the
// standard diagnostics on failure.
func frontend(file string) (*ast.Program, *types.Checker) {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fern: %s\n", err)
		os.Exit(1)
	}

	p := parser.NewFromSource(string(src))
	prog := p.ParseProgram()
	if p.HadError() {
		fmt.Fprintf(os.Stderr, "Parse error in %s\n", file)
		for _, msg := range p.Errors() {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		}
		os.Exit(1)
	}

	checker := types.NewChecker()
	if errs := checker.CheckProgram(prog); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "Type error in %s: %s\n", file, e)
		}
		os.Exit(1)
	}
	return prog, checker
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	dumpAST := fs.Bool("ast", false, "print the parse tree")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: fern check [-ast] <file.fern>")
		os.Exit(2)
	}
	file := fs.Arg(0)
	prog, _ := frontend(file)
	if *dumpAST {
		pretty.Println(prog)
	}
	fmt.Printf("✓ %s: No type errors\n", file)
}

func cmdEmit(args []string) {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	out := fs.String("o", "", "write IL to file instead of stdout")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: fern emit [-o out.ssa] <file.fern>")
		os.Exit(2)
	}
	file := fs.Arg(0)
	prog, checker := frontend(file)

	il, err := codegen.Generate(prog, checker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Codegen error in %s: %s\n", file, err)
		os.Exit(1)
	}
	if *out == "" {
		fmt.Print(il)
		return
	}
	if err := os.WriteFile(*out, []byte(il), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %s\n", err)
		os.Exit(1)
	}
}

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("o", "", "output executable name")
	runtimeSrc := fs.String("runtime", "runtime/fern_runtime.c", "path to the C runtime")
	keep := fs.Bool("keep", false, "keep intermediate .ssa and .s files")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: fern build [-o exe] [-runtime path] <file.fern>")
		os.Exit(2)
	}
	file := fs.Arg(0)
	prog, checker := frontend(file)

	il, err := codegen.Generate(prog, checker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Codegen error in %s: %s\n", file, err)
		os.Exit(1)
	}

	stem := strings.TrimSuffix(file, filepath.Ext(file))
	exe := *out
	if exe == "" {
		exe = stem
	}
	ssaFile := stem + ".ssa"
	asmFile := stem + ".s"

	if err := os.WriteFile(ssaFile, []byte(il), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %s\n", err)
		os.Exit(1)
	}
	if !*keep {
		defer os.Remove(ssaFile)
		defer os.Remove(asmFile)
	}

	if err := run("qbe", "-o", asmFile, ssaFile); err != nil {
		fmt.Fprintf(os.Stderr, "fern: qbe failed: %s\n", err)
		os.Exit(1)
	}
	if err := run("cc", "-o", exe, asmFile, *runtimeSrc, "-lm"); err != nil {
		fmt.Fprintf(os.Stderr, "fern: cc failed: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ %s\n", exe)
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func cmdRepl(args []string) {
	s := repl.NewSession(os.Stdout)
	if err := s.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %s\n", err)
		os.Exit(1)
	}
}
