package storage

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

// SQLite's built-in lower() and LIKE fold ASCII letters only. unicode_lower
// folds the full range so catalog searches ignore case for any script.
func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("unicode_lower", 1, unicodeLower); err != nil {
		panic(fmt.Sprintf("register unicode_lower: %v", err))
	}
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
