// Package metadata implements the typed tabular metadata store (spec.md
// §4.5's sibling, described in §3 and §6): a flat, instrument-specific
// record keyed on observation_id, queryable by parameter-bound predicates.
//
// Column sets are fixed per instrument only after ingest configures them —
// unlike the segment store's schema (pkg/segstore), which is identical
// across every instrument and therefore versioned with golang-migrate, the
// metadata table's DDL is generated per instrument from its ingest config
// (spec.md §6's "columns" key) and executed directly. There is no fixed
// migration history to version here; see DESIGN.md.
package metadata

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/JPLMLIA/pdsc-go/pkg/pdscerr"
)

// ColumnType is one of the typed column kinds spec.md §3 allows.
type ColumnType string

const (
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnReal      ColumnType = "real"
	ColumnTimestamp ColumnType = "timestamp"
)

func (c ColumnType) sqliteType() string {
	switch c {
	case ColumnInteger:
		return "INTEGER"
	case ColumnReal:
		return "REAL"
	case ColumnTimestamp:
		return "INTEGER" // stored as unix nanos
	default:
		return "TEXT"
	}
}

// ColumnDef describes one metadata column.
type ColumnDef struct {
	Name    string
	Type    ColumnType
	Indexed bool
}

// Store is a per-instrument metadata table: one flat record per product
// (several records may share an observation id), with predicate values
// bound as SQL parameters.
type Store struct {
	db          *sql.DB
	instrument  string
	columns     []ColumnDef
	columnIndex map[string]ColumnDef
	idColumn    string
}

// Open creates (if necessary) and opens the metadata table at path, with
// columns as its instrument-specific schema. idColumn must name the column
// holding the observation id (spec.md §3: "at least one column must be
// marked observation_id").
func Open(path, instrument string, columns []ColumnDef, idColumn string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("metadata: %s: %w", pragma, err)
		}
	}

	s := &Store{
		db: db, instrument: instrument, columns: columns,
		columnIndex: make(map[string]ColumnDef, len(columns)),
		idColumn:    idColumn,
	}
	for _, c := range columns {
		s.columnIndex[c.Name] = c
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema() error {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS metadata (\n")
	b.WriteString("  _seq INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range s.columns {
		b.WriteString(fmt.Sprintf(",\n  %s %s", quoteIdent(c.Name), c.Type.sqliteType()))
	}
	b.WriteString("\n)")
	if _, err := s.db.Exec(b.String()); err != nil {
		return fmt.Errorf("metadata: create schema: %w", err)
	}

	for _, c := range s.columns {
		if !c.Indexed {
			continue
		}
		idxName := fmt.Sprintf("idx_metadata_%s", c.Name)
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON metadata(%s)", quoteIdent(idxName), quoteIdent(c.Name))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("metadata: create index on %s: %w", c.Name, err)
		}
	}
	return nil
}

// quoteIdent wraps an identifier in double quotes for safe inclusion in DDL
// built from our own fixed configuration, not user input; predicate values
// in Query are always passed as bound parameters, never interpolated.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// OpenExisting opens a metadata table previously created by Open, without
// requiring the caller to restate its column schema: the schema is
// recovered by introspecting the table via PRAGMA table_info. idColumn is
// assumed to be "observation_id", the convention every instrument config
// uses (spec.md §3).
func OpenExisting(path, instrument string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("metadata: %s: %w", pragma, err)
		}
	}

	rows, err := db.Query(`SELECT name, type FROM pragma_table_info('metadata') ORDER BY cid`)
	if err != nil {
		db.Close()
		return nil, &pdscerr.IndexCorrupt{Instrument: instrument, File: path, Reason: fmt.Sprintf("introspect schema: %v", err)}
	}
	defer rows.Close()

	var columns []ColumnDef
	for rows.Next() {
		var name, sqlType string
		if err := rows.Scan(&name, &sqlType); err != nil {
			db.Close()
			return nil, &pdscerr.IndexCorrupt{Instrument: instrument, File: path, Reason: fmt.Sprintf("scan schema: %v", err)}
		}
		if name == "_seq" {
			continue
		}
		columns = append(columns, ColumnDef{Name: name, Type: columnTypeFromSQL(sqlType)})
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, &pdscerr.IndexCorrupt{Instrument: instrument, File: path, Reason: err.Error()}
	}
	if len(columns) == 0 {
		db.Close()
		return nil, &pdscerr.IndexCorrupt{Instrument: instrument, File: path, Reason: "metadata table has no columns"}
	}

	s := &Store{
		db: db, instrument: instrument, columns: columns,
		columnIndex: make(map[string]ColumnDef, len(columns)),
		idColumn:    "observation_id",
	}
	for _, c := range columns {
		s.columnIndex[c.Name] = c
	}
	return s, nil
}

func columnTypeFromSQL(sqlType string) ColumnType {
	switch sqlType {
	case "INTEGER":
		return ColumnInteger
	case "REAL":
		return ColumnReal
	default:
		return ColumnText
	}
}

// Columns returns the store's column definitions in insertion order.
func (s *Store) Columns() []ColumnDef {
	out := make([]ColumnDef, len(s.columns))
	copy(out, s.columns)
	return out
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert writes one record. record must supply a value for every column in
// the schema; extra keys are ignored.
func (s *Store) Insert(record map[string]any) error {
	cols := make([]string, 0, len(s.columns))
	placeholders := make([]string, 0, len(s.columns))
	args := make([]any, 0, len(s.columns))
	for _, c := range s.columns {
		cols = append(cols, quoteIdent(c.Name))
		placeholders = append(placeholders, "?")
		args = append(args, record[c.Name])
	}
	stmt := fmt.Sprintf("INSERT INTO metadata (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return fmt.Errorf("metadata: insert: %w", err)
	}
	return nil
}

// Operator is a predicate comparison drawn from spec.md §4.5's whitelist.
type Operator string

const (
	OpEQ   Operator = "="
	OpNEQ  Operator = "!="
	OpLT   Operator = "<"
	OpLTE  Operator = "<="
	OpGT   Operator = ">"
	OpGTE  Operator = ">="
	OpLike Operator = "LIKE"
)

var validOperators = map[Operator]bool{
	OpEQ: true, OpNEQ: true, OpLT: true, OpLTE: true, OpGT: true, OpGTE: true, OpLike: true,
}

// Predicate is one (column, operator, value) clause. All predicates passed
// to Query combine with AND.
type Predicate struct {
	Column   string
	Operator Operator
	Value    any
}

// QueryByObservationID fetches every record for id, in insertion order, or
// pdscerr.UnknownObservation if none exists. More than one record is
// expected and legitimate: the same id may correspond to multiple products
// (spec.md §4.4, e.g. HiRISE color and red).
func (s *Store) QueryByObservationID(id string) ([]map[string]any, error) {
	recs, err := s.Query([]Predicate{{Column: s.idColumn, Operator: OpEQ, Value: id}})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &pdscerr.UnknownObservation{Instrument: s.instrument, ID: id, Op: "metadata.QueryByObservationID"}
	}
	return recs, nil
}

// Query returns every record matching all predicates, in insertion order.
// Values are always bound as SQL parameters; column names are checked
// against the schema and quoted as identifiers, never taken from a value.
// Unknown columns or operators yield pdscerr.BadQuery rather than executing
// anything.
func (s *Store) Query(predicates []Predicate) ([]map[string]any, error) {
	var where []string
	var args []any
	for _, p := range predicates {
		if _, ok := s.columnIndex[p.Column]; !ok && p.Column != s.idColumn {
			return nil, &pdscerr.BadQuery{Op: "metadata.Query", Reason: fmt.Sprintf("unknown column %q", p.Column)}
		}
		if !validOperators[p.Operator] {
			return nil, &pdscerr.BadQuery{Op: "metadata.Query", Reason: fmt.Sprintf("unknown operator %q", p.Operator)}
		}
		where = append(where, fmt.Sprintf("%s %s ?", quoteIdent(p.Column), string(p.Operator)))
		args = append(args, p.Value)
	}

	stmt := "SELECT " + s.selectColumns() + " FROM metadata"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY _seq ASC"

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata: query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		scanTargets := make([]any, len(s.columns))
		values := make([]any, len(s.columns))
		for i := range scanTargets {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("metadata: scan: %w", err)
		}
		rec := make(map[string]any, len(s.columns))
		for i, c := range s.columns {
			rec[c.Name] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) selectColumns() string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = quoteIdent(c.Name)
	}
	return strings.Join(names, ", ")
}
