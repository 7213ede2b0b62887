// Package safety classifies SQL statements by the damage they can do.
package safety

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Level is the safety level of a classified statement, ordered
// Safe < Mutating < Destructive.
type Level int

const (
	Safe Level = iota
	Mutating
	Destructive
)

func (l Level) String() string {
	switch l {
	case Safe:
		return "Safe"
	case Mutating:
		return "Mutating"
	case Destructive:
		return "Destructive"
	default:
		return "Unknown"
	}
}

func maxLevel(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

// maxResult returns whichever of a, b has the higher Level, carrying that
// branch's Kind along with it rather than discarding it.
func maxResult(a, b Result) Result {
	if b.Level > a.Level {
		return b
	}
	return a
}

// Kind is the open variant of statement kinds a classification can report.
type Kind string

const (
	KindSelect   Kind = "Select"
	KindInsert   Kind = "Insert"
	KindUpdate   Kind = "Update"
	KindDelete   Kind = "Delete"
	KindDrop     Kind = "Drop"
	KindTruncate Kind = "Truncate"
	KindAlter    Kind = "Alter"
	KindCreate   Kind = "Create"
	KindGrant    Kind = "Grant"
	KindRevoke   Kind = "Revoke"
	KindExplain  Kind = "Explain"
	KindShow     Kind = "Show"
	KindMerge    Kind = "Merge"
	KindWith     Kind = "With"
	KindMultiple Kind = "Multiple"
	KindUnknown  Kind = "Unknown"
)

// Result is the outcome of classifying one SQL string.
type Result struct {
	Level   Level
	Kind    Kind
	Warning string
}

// HasWarning reports whether a human-readable warning accompanies the result.
func (r Result) HasWarning() bool { return r.Warning != "" }

const (
	warnParseFailed = "Could not parse SQL. Please review carefully."
	warnEmpty       = "Empty SQL statement"
	warnDestructive = "This action cannot be undone."
)

// Classify parses sql and returns its safety classification. It never panics
// or returns an error: unparseable or empty input is itself classified as
// Destructive/Unknown with an explanatory warning.
func Classify(sql string) Result {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Result{Level: Destructive, Kind: KindUnknown, Warning: warnEmpty}
	}

	parsed, err := pg_query.Parse(trimmed)
	if err != nil || parsed == nil || len(parsed.Stmts) == 0 {
		return Result{Level: Destructive, Kind: KindUnknown, Warning: warnParseFailed}
	}

	results := make([]Result, 0, len(parsed.Stmts))
	for _, raw := range parsed.Stmts {
		if raw == nil || raw.Stmt == nil {
			continue
		}
		results = append(results, classifyNode(raw.Stmt))
	}

	if len(results) == 0 {
		return Result{Level: Destructive, Kind: KindUnknown, Warning: warnParseFailed}
	}

	if len(results) == 1 {
		return finalize(results[0])
	}

	worst := results[0]
	for _, r := range results[1:] {
		if r.Level > worst.Level {
			worst = r
		}
	}
	return finalize(Result{Level: worst.Level, Kind: KindMultiple})
}

// finalize applies the level/warning invariant: Destructive carries a
// warning, Mutating and Safe do not (unless one was already set, e.g. parse
// failure).
func finalize(r Result) Result {
	if r.Level == Destructive && r.Warning == "" {
		r.Warning = warnDestructive
	}
	if r.Level != Destructive {
		r.Warning = ""
	}
	return r
}

func classifyNode(node *pg_query.Node) Result {
	if node == nil {
		return Result{Level: Safe, Kind: KindUnknown}
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return classifySelect(n.SelectStmt)
	case *pg_query.Node_InsertStmt:
		return mutatingResult(KindInsert, selectLevelFromNode(insertSourceQuery(n.InsertStmt)))
	case *pg_query.Node_UpdateStmt:
		return mutatingResult(KindUpdate, Safe)
	case *pg_query.Node_MergeStmt:
		return mutatingResult(KindMerge, Safe)
	case *pg_query.Node_DeleteStmt:
		return destructiveResult(KindDelete)
	case *pg_query.Node_TruncateStmt:
		return destructiveResult(KindTruncate)
	case *pg_query.Node_DropStmt:
		return destructiveResult(KindDrop)
	case *pg_query.Node_DropdbStmt:
		return destructiveResult(KindDrop)
	case *pg_query.Node_AlterTableStmt:
		return destructiveResult(KindAlter)
	case *pg_query.Node_AlterObjectSchemaStmt:
		return destructiveResult(KindAlter)
	case *pg_query.Node_RenameStmt:
		return destructiveResult(KindAlter)
	case *pg_query.Node_CreateStmt:
		return destructiveResult(KindCreate)
	case *pg_query.Node_CreateTableAsStmt:
		return destructiveResult(KindCreate)
	case *pg_query.Node_ViewStmt:
		return destructiveResult(KindCreate)
	case *pg_query.Node_IndexStmt:
		return destructiveResult(KindCreate)
	case *pg_query.Node_GrantStmt:
		if n.GrantStmt != nil && !n.GrantStmt.GetIsGrant() {
			return destructiveResult(KindRevoke)
		}
		return destructiveResult(KindGrant)
	case *pg_query.Node_VariableShowStmt:
		return Result{Level: Safe, Kind: KindShow}
	case *pg_query.Node_ExplainStmt:
		return classifyExplain(n.ExplainStmt)
	default:
		// Conservative default: anything not explicitly recognized is
		// treated as destructive.
		return destructiveResult(KindUnknown)
	}
}

// classifySelect recurses through WITH, set operations, and FROM-clause
// subqueries/joins so data-modifying CTEs are detected. The Kind reported
// is always that of the most dangerous branch found, never a generic
// "With" marker — a WITH clause whose CTEs and body are all plain SELECTs
// stays KindSelect, exactly as a DELETE inside a CTE surfaces as
// KindDelete rather than being swallowed into "this was a WITH query".
func classifySelect(stmt *pg_query.SelectStmt) Result {
	if stmt == nil {
		return Result{Level: Safe, Kind: KindSelect}
	}

	best := Result{Level: Safe, Kind: KindSelect}

	if stmt.WithClause != nil {
		for _, cteNode := range stmt.WithClause.Ctes {
			cte, ok := cteNode.Node.(*pg_query.Node_CommonTableExpr)
			if !ok || cte.CommonTableExpr == nil {
				continue
			}
			best = maxResult(best, classifyNode(cte.CommonTableExpr.Ctequery))
		}
	}

	// Set operations (UNION/INTERSECT/EXCEPT): take the max of both sides.
	if stmt.Larg != nil {
		best = maxResult(best, classifySelect(stmt.Larg))
	}
	if stmt.Rarg != nil {
		best = maxResult(best, classifySelect(stmt.Rarg))
	}

	for _, fromNode := range stmt.FromClause {
		best = maxResult(best, classifyFromItem(fromNode))
	}

	switch best.Level {
	case Safe:
		return Result{Level: Safe, Kind: best.Kind}
	case Mutating:
		return Result{Level: Mutating, Kind: best.Kind}
	default:
		return destructiveResult(best.Kind)
	}
}

// classifyFromItem recurses into joins and derived tables (subqueries);
// plain table references (RangeVar) never raise the level on their own.
// It reports the Kind of whichever branch is most dangerous, the same way
// classifySelect does, so a destructive statement nested in a derived
// table is never reduced to a bare Level.
func classifyFromItem(node *pg_query.Node) Result {
	if node == nil {
		return Result{Level: Safe, Kind: KindSelect}
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_JoinExpr:
		best := classifyFromItem(n.JoinExpr.Larg)
		return maxResult(best, classifyFromItem(n.JoinExpr.Rarg))
	case *pg_query.Node_RangeSubselect:
		if sub, ok := n.RangeSubselect.Subquery.Node.(*pg_query.Node_SelectStmt); ok {
			return classifySelect(sub.SelectStmt)
		}
		return Result{Level: Safe, Kind: KindSelect}
	default:
		return Result{Level: Safe, Kind: KindSelect}
	}
}

// classifyExplain implements "EXPLAIN does not execute" vs.
// "EXPLAIN ANALYZE <inner> inherits level(inner)".
func classifyExplain(stmt *pg_query.ExplainStmt) Result {
	if stmt == nil {
		return Result{Level: Safe, Kind: KindExplain}
	}
	if explainIsAnalyze(stmt) {
		inner := classifyNode(stmt.Query)
		if inner.Level == Destructive {
			return destructiveResult(KindExplain)
		}
		if inner.Level == Mutating {
			return Result{Level: Mutating, Kind: KindExplain}
		}
		return Result{Level: Safe, Kind: KindExplain}
	}
	return Result{Level: Safe, Kind: KindExplain}
}

func explainIsAnalyze(stmt *pg_query.ExplainStmt) bool {
	for _, optNode := range stmt.Options {
		defElem, ok := optNode.Node.(*pg_query.Node_DefElem)
		if !ok || defElem.DefElem == nil {
			continue
		}
		if strings.EqualFold(defElem.DefElem.Defname, "analyze") {
			return true
		}
	}
	return false
}

// insertSourceQuery returns the INSERT ... SELECT source query, if any, so
// that e.g. `INSERT INTO t SELECT * FROM (DELETE ... RETURNING *) x` style
// constructs (via a mutating CTE in the source) are still detected.
func insertSourceQuery(stmt *pg_query.InsertStmt) *pg_query.Node {
	if stmt == nil {
		return nil
	}
	return stmt.SelectStmt
}

func selectLevelFromNode(node *pg_query.Node) Level {
	if node == nil {
		return Safe
	}
	if sel, ok := node.Node.(*pg_query.Node_SelectStmt); ok {
		return classifySelect(sel.SelectStmt).Level
	}
	return Safe
}

func mutatingResult(kind Kind, sourceLevel Level) Result {
	if sourceLevel == Destructive {
		return destructiveResult(kind)
	}
	return Result{Level: Mutating, Kind: kind}
}

func destructiveResult(kind Kind) Result {
	return Result{Level: Destructive, Kind: kind, Warning: warnDestructive}
}
