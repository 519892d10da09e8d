package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpExtractsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "equipment_serial_key",
		TableName:      "equipment",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert equipment: %w", pgErr), "serial already registered")

	d := Dump(err)
	assert.Equal(t, CodeConflict, d.Code)
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "equipment_serial_key", d.PGConstraint)
	assert.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "equipment", fields["pg_table"])
	assert.NotContains(t, fields, "pg_column")
	assert.Contains(t, fields, "error_chain")
}

func TestDumpExtractsPqDiagnostics(t *testing.T) {
	err := fmt.Errorf("lock equipment: %w", &pq.Error{Code: "55P03", Message: "could not obtain lock"})

	d := Dump(err)
	assert.Equal(t, "55P03", d.PGCode)
	assert.Equal(t, "could not obtain lock", d.PGMessage)
	assert.Empty(t, d.Code)
	assert.NotContains(t, d.Fields(), "error_code")
}

func TestDumpCapsChainDepth(t *testing.T) {
	err := New(CodeInternal, "root")
	var wrapped error = err
	for i := 0; i < 20; i++ {
		wrapped = fmt.Errorf("layer %d: %w", i, wrapped)
	}

	d := Dump(wrapped)
	require.Len(t, d.Chain, maxChainDepth)
	assert.Equal(t, CodeInternal, d.Code)
}

func TestDumpNil(t *testing.T) {
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
