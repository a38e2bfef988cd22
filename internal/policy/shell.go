package policy

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// shellStructure reports the first construct in s that would make it more
// than a single plain word list if handed to a shell: statement chaining,
// pipes, background jobs, redirections, or command/process substitution.
// Input that does not parse is left to the regex denylist.
func shellStructure(s string) (string, bool) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(s), "")
	if err != nil {
		return "", false
	}

	if len(file.Stmts) > 1 {
		return "multiple statements", true
	}

	var found string
	syntax.Walk(file, func(node syntax.Node) bool {
		if found != "" {
			return false
		}
		switch n := node.(type) {
		case *syntax.Stmt:
			switch {
			case n.Background:
				found = "background job"
			case n.Coprocess:
				found = "coprocess"
			case len(n.Redirs) > 0:
				found = "redirection"
			}
		case *syntax.BinaryCmd:
			found = "command chain " + binaryOp(n.Op)
		case *syntax.CmdSubst:
			found = "command substitution"
		case *syntax.ProcSubst:
			found = "process substitution"
		case *syntax.Subshell:
			found = "subshell"
		case *syntax.Block:
			found = "command block"
		}
		return found == ""
	})
	return found, found != ""
}

func binaryOp(op syntax.BinCmdOperator) string {
	switch op {
	case syntax.Pipe:
		return "|"
	case syntax.PipeAll:
		return "|&"
	case syntax.AndStmt:
		return "&&"
	case syntax.OrStmt:
		return "||"
	}
	return "?"
}
