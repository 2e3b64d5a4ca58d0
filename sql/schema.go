package sql

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema/schema.sql
var schemaScript string

// SchemaVersion is the version of the schema applied by Open.
const SchemaVersion = 1

func splitStatements(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, ';'); i >= 0 {
		return i + 1, data[0 : i+1], nil
	}
	if atEOF && len(bytes.TrimSpace(data)) > 0 {
		return len(data), data, nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func applySchema(db *Database) error {
	current, err := Version(db)
	if err != nil {
		return err
	}
	if current >= SchemaVersion {
		return nil
	}
	return db.WithTx(context.Background(), func(tx *Tx) error {
		scanner := bufio.NewScanner(strings.NewReader(schemaScript))
		scanner.Split(splitStatements)
		for scanner.Scan() {
			stmt := strings.TrimSpace(scanner.Text())
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(stmt, nil, nil); err != nil {
				return fmt.Errorf("exec %s: %w", stmt, err)
			}
		}
		return scanner.Err()
	})
}

// Version returns the schema version of the database.
func Version(db Executor) (int, error) {
	var current int
	if _, err := db.Exec("PRAGMA user_version;", nil, func(stmt *Statement) bool {
		current = stmt.ColumnInt(0)
		return true
	}); err != nil {
		return 0, fmt.Errorf("read user_version %w", err)
	}
	return current, nil
}
