package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/contagion/internal/ir"
	"github.com/roach88/contagion/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Run      string // Run the assertion inspected, if any
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Run != "" {
		fmt.Fprintf(&buf, " (run %s)", e.Run)
	}
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the experiment.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state and sql
// assertions.
func EvaluateAssertions(exp *ExperimentResult, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalInfected:
			err = assertFinalInfected(exp, assertion)
		case AssertEventAt:
			err = assertEventAt(exp, assertion)
		case AssertEventCount:
			err = assertEventCount(exp, assertion)
		case AssertCausalRelation:
			err = assertCausalRelation(exp, assertion)
		case AssertSubsetOfBaseline:
			err = assertSubsetOfBaseline(exp, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertSQL:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: sql requires database context", i)
			} else {
				err = assertSQL(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func lookupRun(exp *ExperimentResult, a Assertion) (*RunResult, error) {
	run, ok := exp.Run(a.Run)
	if !ok {
		return nil, &AssertionError{
			Type:     a.Type,
			Run:      a.Run,
			Expected: fmt.Sprintf("run %q", a.Run),
			Actual:   "run not found",
		}
	}
	return run, nil
}

// assertFinalInfected checks the run's infected set at its last tick.
func assertFinalInfected(exp *ExperimentResult, a Assertion) error {
	run, err := lookupRun(exp, a)
	if err != nil {
		return err
	}
	want := toAgentIDs(a.Agents)
	if !slices.Equal(want, run.FinalInfected) {
		return &AssertionError{
			Type:     AssertFinalInfected,
			Run:      a.Run,
			Expected: fmt.Sprintf("final infected %v", want),
			Actual:   fmt.Sprintf("final infected %v", run.FinalInfected),
		}
	}
	return nil
}

// assertEventAt checks the fields of one trace entry. Empty fields are
// not compared.
func assertEventAt(exp *ExperimentResult, a Assertion) error {
	run, err := lookupRun(exp, a)
	if err != nil {
		return err
	}
	entry, err := run.Trace.Lookup(*a.Tick, ir.AgentID(*a.Agent))
	if err != nil {
		return &AssertionError{
			Type:     AssertEventAt,
			Run:      a.Run,
			Expected: fmt.Sprintf("entry at tick %d agent %d", *a.Tick, *a.Agent),
			Actual:   err.Error(),
		}
	}

	var mismatches []string
	if ev, err := ir.ParseEvent(a.Event); a.Event != "" && (err != nil || ev != entry.Event) {
		mismatches = append(mismatches, fmt.Sprintf("event %s (want %s)", entry.Event, a.Event))
	}
	if st, err := ir.ParseState(a.State); a.State != "" && (err != nil || st != entry.State) {
		mismatches = append(mismatches, fmt.Sprintf("state %s (want %s)", entry.State, a.State))
	}
	if a.Cause != "" && !causeMatches(entry.Cause, a.Cause) {
		mismatches = append(mismatches, fmt.Sprintf("cause %s (want %s)", entry.Cause, a.Cause))
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertEventAt,
			Run:      a.Run,
			Expected: fmt.Sprintf("entry at tick %d agent %d: %s", *a.Tick, *a.Agent, describeEntry(a)),
			Actual:   strings.Join(mismatches, ", "),
		}
	}
	return nil
}

func causeMatches(c ir.Cause, want string) bool {
	if want == "none" {
		return c == ir.NoCause
	}
	parsed, err := ir.ParseCause(want)
	return err == nil && parsed == c
}

func describeEntry(a Assertion) string {
	var parts []string
	if a.Event != "" {
		parts = append(parts, "event="+a.Event)
	}
	if a.State != "" {
		parts = append(parts, "state="+a.State)
	}
	if a.Cause != "" {
		parts = append(parts, "cause="+a.Cause)
	}
	return strings.Join(parts, " ")
}

// assertEventCount checks how often an event occurs over the whole run.
func assertEventCount(exp *ExperimentResult, a Assertion) error {
	run, err := lookupRun(exp, a)
	if err != nil {
		return err
	}
	ev, err := ir.ParseEvent(a.Event)
	if err != nil {
		return err
	}
	count := run.Trace.CountEvents(ev)
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Run:      a.Run,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
		}
	}
	return nil
}

// assertCausalRelation checks the relation computed for one variant.
func assertCausalRelation(exp *ExperimentResult, a Assertion) error {
	got, ok := exp.CausalRelation[a.Run]
	if !ok {
		return &AssertionError{
			Type:     AssertCausalRelation,
			Run:      a.Run,
			Expected: fmt.Sprintf("causal relation for %q", a.Run),
			Actual:   "no such variant",
		}
	}
	want := toAgentIDs(a.Agents)
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertCausalRelation,
			Run:      a.Run,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertSubsetOfBaseline checks that a variant infects nobody the
// baseline did not. Trace-constrained variants always satisfy this.
func assertSubsetOfBaseline(exp *ExperimentResult, a Assertion) error {
	run, err := lookupRun(exp, a)
	if err != nil {
		return err
	}
	var extra []ir.AgentID
	for _, id := range run.FinalInfected {
		if !slices.Contains(exp.Baseline.FinalInfected, id) {
			extra = append(extra, id)
		}
	}
	if len(extra) > 0 {
		return &AssertionError{
			Type:     AssertSubsetOfBaseline,
			Run:      a.Run,
			Expected: fmt.Sprintf("final infected within baseline %v", exp.Baseline.FinalInfected),
			Actual:   fmt.Sprintf("also infected %v", extra),
		}
	}
	return nil
}

// assertFinalState checks a row of the store mirror.
// Queries the table with parameterized SQL and validates expected values
// using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	// Validate table name to prevent SQL injection (identifiers can't be parameterized)
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	// Build WHERE clause with parameterized SQL (never interpolate values)
	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Multiple matching rows make the assertion ambiguous.
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	// Subset semantics: only fields in Expect are checked. Keys are
	// visited in order so the first reported mismatch is stable.
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// assertSQL runs a read-only counting query against the store mirror.
func assertSQL(ctx context.Context, st *store.Store, a Assertion) error {
	q := strings.TrimSpace(a.Query)
	if !strings.HasPrefix(strings.ToUpper(q), "SELECT") {
		return fmt.Errorf("sql assertion query must be a SELECT: %q", a.Query)
	}
	n, err := st.Count(ctx, q)
	if err != nil {
		return &AssertionError{
			Type:     AssertSQL,
			Expected: fmt.Sprintf("count %d from %q", *a.Count, q),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertSQL,
			Expected: fmt.Sprintf("count %d from %q", *a.Count, q),
			Actual:   fmt.Sprintf("count %d", n),
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, float64:
		return val
	case bool:
		// Booleans are stored as 0/1.
		if val {
			return 1
		}
		return 0
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values from store tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case float64:
		if actualFloat, ok := actual.(float64); ok {
			return exp == actualFloat
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func toAgentIDs(ids []int) []ir.AgentID {
	out := make([]ir.AgentID, len(ids))
	for i, id := range ids {
		out[i] = ir.AgentID(id)
	}
	slices.Sort(out)
	return out
}

