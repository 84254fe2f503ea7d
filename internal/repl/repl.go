// Package repl implements the interactive session. Inputs are lexed,
// parsed and type-checked exactly like compiled files, then evaluated
// on a tree-walking interpreter.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/NijanthanR/fern/internal/ast"
	"github.com/NijanthanR/fern/internal/parser"
	"github.com/NijanthanR/fern/internal/types"
	"github.com/NijanthanR/fern/internal/value"
)

const prompt = "fern> "
const contPrompt = "....> "

// Session holds the state carried across REPL inputs: one checker and
// one evaluator, so earlier definitions stay visible.
type Session struct {
	checker *types.Checker
	eval    *Evaluator
	out     io.Writer
	history *os.File
}

func NewSession(out io.Writer) *Session {
	checker := types.NewChecker()
	return &Session{
		checker: checker,
		eval:    NewEvaluator(checker),
		out:     out,
	}
}

// Run reads inputs until :quit or EOF.
func (s *Session) Run(in io.Reader) error {
	fmt.Fprintln(s.out, "fern repl. Type :help for help, :quit to exit.")
	s.openHistory()
	defer s.closeHistory()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.appendHistory(line)

		if strings.HasPrefix(strings.TrimSpace(line), ":") {
			if quit := s.command(strings.TrimSpace(line)); quit {
				return nil
			}
			continue
		}

		// a line opening a block keeps reading until a blank line
		if strings.HasSuffix(strings.TrimRight(line, " \t"), ":") {
			var b strings.Builder
			b.WriteString(line)
			for {
				fmt.Fprint(s.out, contPrompt)
				if !scanner.Scan() {
					break
				}
				next := scanner.Text()
				if strings.TrimSpace(next) == "" {
					break
				}
				b.WriteString("\n")
				b.WriteString(next)
			}
			line = b.String()
		}

		s.Input(line)
	}
}

func (s *Session) command(cmd string) (quit bool) {
	switch {
	case cmd == ":quit" || cmd == ":q":
		return true
	case cmd == ":help" || cmd == ":h":
		fmt.Fprintln(s.out, "Commands:")
		fmt.Fprintln(s.out, "  :help          show this help")
		fmt.Fprintln(s.out, "  :type <expr>   show the type of an expression")
		fmt.Fprintln(s.out, "  :quit          exit")
		fmt.Fprintln(s.out, "Builtins:")
		fmt.Fprintln(s.out, "  "+strings.Join(types.Builtins(), " "))
	case strings.HasPrefix(cmd, ":type "):
		s.showType(strings.TrimPrefix(cmd, ":type "))
	case strings.HasPrefix(cmd, ":t "):
		s.showType(strings.TrimPrefix(cmd, ":t "))
	default:
		fmt.Fprintf(s.out, "unknown command %s; try :help\n", cmd)
	}
	return false
}

func (s *Session) showType(src string) {
	e, err := s.parseExpr(src)
	if err != nil {
		fmt.Fprintf(s.out, "Parse error: %s\n", err)
		return
	}
	t, errs := s.checker.Infer(e)
	if len(errs) > 0 {
		fmt.Fprintf(s.out, "Type error: %s\n", errs[0].Msg)
		return
	}
	fmt.Fprintf(s.out, "%s\n", t)
}

// Input handles one (possibly multi-line) REPL entry.
func (s *Session) Input(src string) {
	p := parser.NewFromSource(src)
	prog := p.ParseProgram()
	if p.HadError() {
		fmt.Fprintf(s.out, "Parse error: %s\n", p.Errors()[0])
		return
	}

	for _, stmt := range prog.Stmts {
		if es, ok := stmt.(*ast.ExprStmt); ok {
			t, errs := s.checker.Infer(es.X)
			if len(errs) > 0 {
				fmt.Fprintf(s.out, "Type error: %s\n", errs[0].Msg)
				return
			}
			v, err := s.eval.EvalStmt(stmt)
			if err != nil {
				fmt.Fprintf(s.out, "Error: %s\n", err)
				return
			}
			if v.Kind != value.KindUnit {
				fmt.Fprintf(s.out, "%s : %s\n", v, t)
			}
			continue
		}

		if errs := s.checker.CheckStmt(stmt); len(errs) > 0 {
			fmt.Fprintf(s.out, "Type error: %s\n", errs[0].Msg)
			return
		}
		if _, err := s.eval.EvalStmt(stmt); err != nil {
			fmt.Fprintf(s.out, "Error: %s\n", err)
			return
		}
	}
}

func (s *Session) parseExpr(src string) (ast.Expr, error) {
	p := parser.NewFromSource(src)
	prog := p.ParseProgram()
	if p.HadError() {
		return nil, fmt.Errorf("%s", p.Errors()[0])
	}
	if len(prog.Stmts) != 1 {
		return nil, fmt.Errorf("expected a single expression")
	}
	es, ok := prog.Stmts[0].(*ast.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("expected an expression, got a statement")
	}
	return es.X, nil
}

// ----- history -----

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fern_history")
}

func (s *Session) openHistory() {
	path := historyPath()
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	s.history = f
}

func (s *Session) appendHistory(line string) {
	if s.history != nil {
		fmt.Fprintln(s.history, line)
	}
}

func (s *Session) closeHistory() {
	if s.history != nil {
		s.history.Close()
	}
}
