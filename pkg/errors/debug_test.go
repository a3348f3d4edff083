package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDumpNil(t *testing.T) {
	assert.Equal(t, ErrorDump{}, Dump(nil))
}

func TestDumpWalksChainAndPgxError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "22003",
		Message:        "bigint out of range",
		TableName:      "scores",
		ColumnName:     "score",
		ConstraintName: "",
	}
	err := Wrap(CodeIntegerOverflow, fmt.Errorf("exec: %w", pgErr), "score out of range")

	d := Dump(err)
	assert.Equal(t, CodeIntegerOverflow, d.Code)
	assert.Equal(t, "22003", d.PGCode)
	assert.Equal(t, "scores", d.PGTable)
	assert.Equal(t, "score", d.PGColumn)
	assert.Equal(t, "bigint out of range", d.PGMessage)
	assert.Len(t, d.Chain, 3)
}

func TestDumpLibPQError(t *testing.T) {
	err := fmt.Errorf("query: %w", &pq.Error{Code: "08006", Message: "connection failure", Table: "scores"})

	d := Dump(err)
	assert.Empty(t, d.Code)
	assert.Equal(t, "08006", d.PGCode)
	assert.Equal(t, "connection failure", d.PGMessage)
	assert.Equal(t, "scores", d.PGTable)
}

func TestDumpFields(t *testing.T) {
	plain := Dump(New(CodeStorageUnavailable, "down")).Fields()
	assert.Equal(t, "STORAGE_UNAVAILABLE", plain["error_code"])
	assert.NotContains(t, plain, "pg_code")

	withPG := Dump(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "57014", TableName: "scores"})).Fields()
	assert.Equal(t, "57014", withPG["pg_code"])
	assert.Equal(t, "scores", withPG["pg_table"])
	assert.NotContains(t, withPG, "pg_detail")
	assert.NotContains(t, withPG, "error_code")
}
