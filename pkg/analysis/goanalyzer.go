package analysis

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"sort"

	"github.com/jupierce/source-coverage/pkg/data"
)

// GoAnalyzer analyzes Go source files with go/parser. Statements are the
// lines of executable statements inside function bodies; arcs follow the
// control flow of each function, with -L standing for the exit of the
// function declared on line L.
type GoAnalyzer struct {
	Exclude ExcludePredicate
}

// NewGoAnalyzer creates a GoAnalyzer honouring the default exclusion pragma.
func NewGoAnalyzer() *GoAnalyzer {
	exclude, _ := RegexExcluder(DefaultExcludePattern)
	return &GoAnalyzer{Exclude: exclude}
}

// Analyze implements Analyzer.
func (a *GoAnalyzer) Analyze(src []byte, filename string) (*StaticInfo, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, toParseError(filename, err)
	}

	marked := map[int]struct{}{}
	if a.Exclude != nil {
		marked = a.Exclude(src)
	}

	fb := &flowBuilder{
		fset:     fset,
		stmts:    map[int]struct{}{},
		arcs:     map[data.Arc]struct{}{},
		excluded: map[int]struct{}{},
	}

	ast.Inspect(file, func(n ast.Node) bool {
		var body *ast.BlockStmt
		closure := false
		switch fn := n.(type) {
		case *ast.FuncDecl:
			body = fn.Body
		case *ast.FuncLit:
			body = fn.Body
			closure = true
		default:
			return true
		}
		if body == nil {
			return true
		}
		funcLine := fb.line(n)
		if _, ok := marked[funcLine]; ok {
			fb.excludeNested(body)
			return true
		}
		shared := 0
		if closure {
			shared = funcLine
		}
		fb.function(funcLine, shared, body)
		return true
	})

	// A marked statement takes everything nested in it along.
	ast.Inspect(file, func(n ast.Node) bool {
		s, ok := n.(ast.Stmt)
		if !ok || !isStatement(s) {
			return true
		}
		if _, ok := marked[fb.line(s)]; ok {
			fb.excludeNested(s)
			return false
		}
		return true
	})

	return fb.result(), nil
}

func toParseError(filename string, err error) *ParseError {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &ParseError{Filename: filename, Message: list[0].Msg, Line: list[0].Pos.Line}
	}
	return &ParseError{Filename: filename, Message: err.Error()}
}

// isStatement reports whether s occupies a reportable line of its own.
func isStatement(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.BlockStmt, *ast.EmptyStmt, *ast.LabeledStmt, *ast.CaseClause, *ast.CommClause:
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// jumpTarget is an enclosing statement that break (and, for loops,
// continue) can leave or restart.
type jumpTarget struct {
	label  string
	loop   bool
	head   int
	breaks []int
}

type flowBuilder struct {
	fset     *token.FileSet
	stmts    map[int]struct{}
	arcs     map[data.Arc]struct{}
	excluded map[int]struct{}

	exit    int
	targets []*jumpTarget
	label   string
	// shared is the line a closure is written on. That line already belongs
	// to the enclosing function's flow, so the closure adds no arcs to it.
	shared int
}

func (fb *flowBuilder) line(n ast.Node) int {
	return fb.fset.Position(n.Pos()).Line
}

func (fb *flowBuilder) arc(from, to int) {
	if from == to {
		return
	}
	if fb.shared > 0 && (from == fb.shared || to == fb.shared) {
		return
	}
	fb.arcs[data.Arc{From: from, To: to}] = struct{}{}
}

func (fb *flowBuilder) arcsFrom(prev []int, to int) {
	for _, p := range prev {
		fb.arc(p, to)
	}
}

func (fb *flowBuilder) function(funcLine, shared int, body *ast.BlockStmt) {
	saved := fb.exit
	savedTargets := fb.targets
	savedShared := fb.shared
	fb.exit = -funcLine
	fb.targets = nil
	fb.shared = shared

	outs := fb.block(body.List, []int{-funcLine})
	fb.arcsFrom(outs, fb.exit)

	fb.exit = saved
	fb.targets = savedTargets
	fb.shared = savedShared
}

// block threads control through list, starting from the lines in prev, and
// returns the lines that fall through past its end.
func (fb *flowBuilder) block(list []ast.Stmt, prev []int) []int {
	for _, s := range list {
		prev = fb.stmt(s, prev)
	}
	return prev
}

func (fb *flowBuilder) stmt(s ast.Stmt, prev []int) []int {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return fb.block(s.List, prev)
	case *ast.EmptyStmt:
		return prev
	case *ast.LabeledStmt:
		fb.label = s.Label.Name
		return fb.stmt(s.Stmt, prev)
	}

	line := fb.line(s)
	fb.stmts[line] = struct{}{}
	fb.arcsFrom(prev, line)

	label := fb.label
	fb.label = ""

	switch s := s.(type) {
	case *ast.IfStmt:
		then := fb.block(s.Body.List, []int{line})
		els := []int{line}
		if s.Else != nil {
			els = fb.stmt(s.Else, []int{line})
		}
		return union(then, els)

	case *ast.ForStmt:
		t := fb.push(label, true, line)
		fb.loopBody(s.Body, line)
		fb.pop()
		if s.Cond == nil {
			return t.breaks
		}
		return union([]int{line}, t.breaks)

	case *ast.RangeStmt:
		t := fb.push(label, true, line)
		fb.loopBody(s.Body, line)
		fb.pop()
		return union([]int{line}, t.breaks)

	case *ast.SwitchStmt:
		return fb.clauses(label, line, s.Body, true)

	case *ast.TypeSwitchStmt:
		return fb.clauses(label, line, s.Body, true)

	case *ast.SelectStmt:
		return fb.clauses(label, line, s.Body, false)

	case *ast.ReturnStmt:
		fb.arc(line, fb.exit)
		return nil

	case *ast.ExprStmt:
		if isPanic(s.X) {
			fb.arc(line, fb.exit)
			return nil
		}

	case *ast.BranchStmt:
		return fb.branch(s, line)
	}
	return []int{line}
}

func (fb *flowBuilder) loopBody(body *ast.BlockStmt, head int) {
	outs := fb.block(body.List, []int{head})
	fb.arcsFrom(outs, head)
}

// clauses handles the bodies of switch, type switch and select statements.
// Without a default clause a switch can also fall past all of them.
func (fb *flowBuilder) clauses(label string, line int, body *ast.BlockStmt, isSwitch bool) []int {
	t := fb.push(label, false, line)
	defer fb.pop()

	var outs, pending []int
	hasDefault := false
	for _, c := range body.List {
		var list []ast.Stmt
		switch c := c.(type) {
		case *ast.CaseClause:
			list = c.Body
			hasDefault = hasDefault || c.List == nil
		case *ast.CommClause:
			list = c.Body
			hasDefault = hasDefault || c.Comm == nil
		}
		clauseOuts := fb.block(list, union([]int{line}, pending))
		pending = nil
		if endsInFallthrough(list) {
			pending = clauseOuts
			continue
		}
		outs = union(outs, clauseOuts)
	}
	if isSwitch && !hasDefault {
		outs = union(outs, []int{line})
	}
	return union(outs, t.breaks)
}

func (fb *flowBuilder) branch(s *ast.BranchStmt, line int) []int {
	label := ""
	if s.Label != nil {
		label = s.Label.Name
	}
	switch s.Tok {
	case token.BREAK:
		if t := fb.find(label, false); t != nil {
			t.breaks = append(t.breaks, line)
		}
		return nil
	case token.CONTINUE:
		if t := fb.find(label, true); t != nil {
			fb.arc(line, t.head)
		}
		return nil
	case token.FALLTHROUGH:
		return []int{line}
	}
	// goto: the destination is not tracked.
	return nil
}

func (fb *flowBuilder) push(label string, loop bool, head int) *jumpTarget {
	t := &jumpTarget{label: label, loop: loop, head: head}
	fb.targets = append(fb.targets, t)
	return t
}

func (fb *flowBuilder) pop() {
	fb.targets = fb.targets[:len(fb.targets)-1]
}

func (fb *flowBuilder) find(label string, loopOnly bool) *jumpTarget {
	for i := len(fb.targets) - 1; i >= 0; i-- {
		t := fb.targets[i]
		if label != "" {
			if t.label == label {
				return t
			}
			continue
		}
		if !loopOnly || t.loop {
			return t
		}
	}
	return nil
}

func endsInFallthrough(list []ast.Stmt) bool {
	if len(list) == 0 {
		return false
	}
	b, ok := list[len(list)-1].(*ast.BranchStmt)
	return ok && b.Tok == token.FALLTHROUGH
}

func isPanic(e ast.Expr) bool {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return false
	}
	id, ok := call.Fun.(*ast.Ident)
	return ok && id.Name == "panic"
}

// excludeNested marks the lines of n and of every statement inside it.
func (fb *flowBuilder) excludeNested(n ast.Node) {
	ast.Inspect(n, func(c ast.Node) bool {
		if s, ok := c.(ast.Stmt); ok && isStatement(s) {
			fb.excluded[fb.line(s)] = struct{}{}
		}
		return true
	})
}

func (fb *flowBuilder) result() *StaticInfo {
	info := &StaticInfo{}
	for l := range fb.excluded {
		info.Excluded = append(info.Excluded, l)
	}
	for l := range fb.stmts {
		if _, ok := fb.excluded[l]; !ok {
			info.Statements = append(info.Statements, l)
		}
	}
	for a := range fb.arcs {
		if _, ok := fb.excluded[a.From]; ok {
			continue
		}
		if _, ok := fb.excluded[a.To]; ok {
			continue
		}
		info.Arcs = append(info.Arcs, a)
	}
	sort.Ints(info.Excluded)
	sort.Ints(info.Statements)
	data.SortArcs(info.Arcs)
	return info
}

func union(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	var out []int
	for _, l := range append(append([]int(nil), a...), b...) {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
