package sqldigest

import (
	"fmt"

	"github.com/pkg/errors"

	changeset "github.com/jordanwade90/sqlite-changeset"
	"github.com/jordanwade90/sqlite-changeset/wire"
)

// SchemaSet resolves table names to named-column schemas for the
// statements a parser encounters. Callers typically back it with a
// map[string]changeset.NamedTableSchema built once at startup.
type SchemaSet interface {
	Table(name string) (changeset.NamedTableSchema, bool)
}

// TableMap is the map-backed SchemaSet implementation most callers need.
type TableMap map[string]changeset.NamedTableSchema

func (m TableMap) Table(name string) (changeset.NamedTableSchema, bool) {
	t, ok := m[name]
	return t, ok
}

// Digest parses one or more semicolon-separated statements from sql and
// applies each, in order, to dst via Insert/UpdateNew/DeletePK. dst must
// be a patchset DiffSet; SQL DML text never carries the old non-PK
// values a changeset record needs.
func Digest(dst *changeset.DiffSet, tables SchemaSet, sql string) error {
	if dst.IsPatchset() == false {
		return fmt.Errorf("%w: SQL digest only applies to patchsets", ErrUnsupportedStatement)
	}
	p := &parser{lex: newLexer(sql), tables: tables, dst: dst}
	return p.digestAll()
}

type parser struct {
	lex    *lexer
	tables SchemaSet
	dst    *changeset.DiffSet
}

func (p *parser) digestAll() error {
	for {
		for {
			t, err := p.lex.peek()
			if err != nil {
				return err
			}
			if t.kind != tokSemicolon {
				break
			}
			if _, err := p.lex.next(); err != nil {
				return err
			}
		}

		t, err := p.lex.peek()
		if err != nil {
			return err
		}
		if t.kind == tokEOF {
			return nil
		}
		if err := p.digestStatement(); err != nil {
			return err
		}
	}
}

func (p *parser) digestStatement() error {
	t, err := p.lex.peek()
	if err != nil {
		return err
	}
	switch t.kind {
	case tokInsert:
		return p.digestInsert()
	case tokUpdate:
		return p.digestUpdate()
	case tokDelete:
		return p.digestDelete()
	default:
		return fmt.Errorf("%w: expected INSERT, UPDATE, or DELETE, found %s at position %d", ErrUnsupportedStatement, t.kind, t.pos)
	}
}

func (p *parser) digestInsert() error {
	if err := p.expect(tokInsert); err != nil {
		return err
	}
	if err := p.expect(tokInto); err != nil {
		return err
	}
	table, err := p.expectTable()
	if err != nil {
		return err
	}

	var columnOrder []int
	t, err := p.lex.peek()
	if err != nil {
		return err
	}
	if t.kind == tokLParen {
		if _, err := p.lex.next(); err != nil {
			return err
		}
		for {
			idx, err := p.expectColumn(table)
			if err != nil {
				return err
			}
			columnOrder = append(columnOrder, idx)
			t, err := p.lex.peek()
			if err != nil {
				return err
			}
			if t.kind != tokComma {
				break
			}
			if _, err := p.lex.next(); err != nil {
				return err
			}
		}
		if err := p.expect(tokRParen); err != nil {
			return err
		}
	}

	if err := p.expect(tokValues); err != nil {
		return err
	}
	if err := p.expect(tokLParen); err != nil {
		return err
	}

	values := make([]wire.Value, table.ColumnCount())
	for i := range values {
		values[i] = wire.Null()
	}

	if columnOrder == nil {
		for col := 0; col < table.ColumnCount(); col++ {
			if col > 0 {
				if err := p.expect(tokComma); err != nil {
					return err
				}
			}
			v, err := p.parseValue()
			if err != nil {
				return err
			}
			values[col] = v
		}
	} else {
		for i, col := range columnOrder {
			v, err := p.parseValue()
			if err != nil {
				return err
			}
			values[col] = v
			if i == len(columnOrder)-1 {
				break
			}
			if err := p.expect(tokComma); err != nil {
				return err
			}
		}
	}

	if err := p.expect(tokRParen); err != nil {
		return err
	}

	if err := p.dst.Insert(table.TableSchema, values); err != nil {
		return errors.Wrapf(err, "digesting INSERT into %q", table.Name())
	}
	return nil
}

func (p *parser) digestUpdate() error {
	if err := p.expect(tokUpdate); err != nil {
		return err
	}
	table, err := p.expectTable()
	if err != nil {
		return err
	}
	if err := p.expect(tokSet); err != nil {
		return err
	}

	newValues := make([]wire.Value, table.ColumnCount())
	for i := range newValues {
		newValues[i] = wire.Undefined
	}

	for {
		col, err := p.expectColumn(table)
		if err != nil {
			return err
		}
		if err := p.expect(tokEquals); err != nil {
			return err
		}
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		newValues[col] = v

		t, err := p.lex.peek()
		if err != nil {
			return err
		}
		if t.kind != tokComma {
			break
		}
		if _, err := p.lex.next(); err != nil {
			return err
		}
	}

	t, err := p.lex.peek()
	if err != nil {
		return err
	}
	if t.kind != tokWhere {
		return fmt.Errorf("%w: UPDATE requires a WHERE clause", ErrUnsupportedStatement)
	}

	pkValues := make([]wire.Value, table.ColumnCount())
	for i := range pkValues {
		pkValues[i] = wire.Undefined
	}
	if err := p.digestWhere(table, func(col int, v wire.Value) error {
		pkValues[col] = v
		return nil
	}); err != nil {
		return err
	}

	for _, idx := range table.PKIndices() {
		if pkValues[idx].IsUndefined() {
			return fmt.Errorf("%w: WHERE clause of UPDATE on %q must constrain every primary key column", ErrUnsupportedStatement, table.Name())
		}
		newValues[idx] = pkValues[idx]
	}

	if err := p.dst.UpdateNew(table.TableSchema, newValues); err != nil {
		return errors.Wrapf(err, "digesting UPDATE of %q", table.Name())
	}
	return nil
}

func (p *parser) digestDelete() error {
	if err := p.expect(tokDelete); err != nil {
		return err
	}
	if err := p.expect(tokFrom); err != nil {
		return err
	}
	table, err := p.expectTable()
	if err != nil {
		return err
	}

	t, err := p.lex.peek()
	if err != nil {
		return err
	}
	if t.kind != tokWhere {
		return fmt.Errorf("%w: DELETE requires a WHERE clause", ErrUnsupportedStatement)
	}

	pkIndices := table.PKIndices()
	seen := make([]wire.Value, len(pkIndices))
	indexOf := func(col int) int {
		for i, idx := range pkIndices {
			if idx == col {
				return i
			}
		}
		return -1
	}
	for i := range seen {
		seen[i] = wire.Undefined
	}
	if err := p.digestWhere(table, func(col int, v wire.Value) error {
		i := indexOf(col)
		seen[i] = v
		return nil
	}); err != nil {
		return err
	}
	for i, v := range seen {
		if v.IsUndefined() {
			return fmt.Errorf("%w: WHERE clause of DELETE on %q must constrain column %q",
				ErrUnsupportedStatement, table.Name(), table.ColumnNames[pkIndices[i]])
		}
	}

	if err := p.dst.DeletePK(table.TableSchema, seen); err != nil {
		return errors.Wrapf(err, "digesting DELETE from %q", table.Name())
	}
	return nil
}

// digestWhere parses a conjunction of column=literal equalities, calling
// set(columnIndex, value) for each. Every named column must be a primary
// key column of table, or the clause is rejected.
func (p *parser) digestWhere(table changeset.NamedTableSchema, set func(col int, v wire.Value) error) error {
	if err := p.expect(tokWhere); err != nil {
		return err
	}
	for {
		col, err := p.expectColumn(table)
		if err != nil {
			return err
		}
		if table.PKFlag(col) == 0 {
			return fmt.Errorf("%w: WHERE clause constrains non-primary-key column %q", ErrUnsupportedStatement, table.ColumnNames[col])
		}
		if err := p.expect(tokEquals); err != nil {
			return err
		}
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		if err := set(col, v); err != nil {
			return err
		}

		t, err := p.lex.peek()
		if err != nil {
			return err
		}
		if t.kind != tokAnd {
			break
		}
		if _, err := p.lex.next(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseValue() (wire.Value, error) {
	t, err := p.lex.next()
	if err != nil {
		return wire.Value{}, err
	}
	switch t.kind {
	case tokNull:
		return wire.Null(), nil
	case tokIntegerLit:
		return wire.Integer(t.ival), nil
	case tokRealLit:
		return wire.Real(t.fval), nil
	case tokStringLit:
		return wire.Text(t.sval), nil
	case tokBlobLit:
		return wire.Blob(t.bval), nil
	case tokMinus:
		next, err := p.lex.next()
		if err != nil {
			return wire.Value{}, err
		}
		switch next.kind {
		case tokIntegerLit:
			return wire.Integer(-next.ival), nil
		case tokRealLit:
			return wire.Real(-next.fval), nil
		default:
			return wire.Value{}, fmt.Errorf("%w: expected number after '-' at position %d, found %s", ErrUnexpectedToken, next.pos, next.kind)
		}
	default:
		return wire.Value{}, fmt.Errorf("%w: expected a value literal at position %d, found %s", ErrUnexpectedToken, t.pos, t.kind)
	}
}

func (p *parser) expect(kind tokenKind) error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	if t.kind != kind {
		return fmt.Errorf("%w: expected %s at position %d, found %s", ErrUnexpectedToken, kind, t.pos, t.kind)
	}
	return nil
}

func (p *parser) expectIdentifier() (string, error) {
	t, err := p.lex.next()
	if err != nil {
		return "", err
	}
	if t.kind != tokIdentifier {
		return "", fmt.Errorf("%w: expected an identifier at position %d, found %s", ErrUnexpectedToken, t.pos, t.kind)
	}
	return t.sval, nil
}

func (p *parser) expectTable() (changeset.NamedTableSchema, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return changeset.NamedTableSchema{}, err
	}
	table, ok := p.tables.Table(name)
	if !ok {
		return changeset.NamedTableSchema{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return table, nil
}

func (p *parser) expectColumn(table changeset.NamedTableSchema) (int, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return 0, err
	}
	idx := table.ColumnIndex(name)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q has no column %q", ErrUnknownColumn, table.Name(), name)
	}
	return idx, nil
}
