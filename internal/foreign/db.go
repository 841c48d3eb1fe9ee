package foreign

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"braid/internal/number"
	"braid/internal/object"
)

// Database handles are plain numbers on the language side, mapping to
// *sql.DB (and at most one open transaction) here. Handles may cross
// tasks, so the tables are locked.
var (
	dbMu           sync.Mutex
	dbConnections  = map[int64]*sql.DB{}
	dbTransactions = map[int64]*sql.Tx{}
)

func fnDbConnect() *object.Foreign {
	return &object.Foreign{
		Name: "db.connect",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 2 {
				return ctx.NewError("db.connect wants a driver and a connection string")
			}
			driver, ok := unpackString(args[0])
			if !ok {
				return ctx.NewError("db.connect driver must be a string, got %s", args[0].Type())
			}
			connStr, ok := unpackString(args[1])
			if !ok {
				return ctx.NewError("db.connect connection string must be a string, got %s", args[1].Type())
			}

			db, err := sql.Open(driver, connStr)
			if err != nil {
				return ctx.NewError("cannot open %s connection: %v", driver, err)
			}
			if err := db.Ping(); err != nil {
				db.Close()
				return ctx.NewError("cannot reach database: %v", err)
			}

			id := ctx.NextHandleID()
			dbMu.Lock()
			dbConnections[id] = db
			dbMu.Unlock()
			return &object.Number{Value: number.FromInt64(id)}
		},
	}
}

func connectionFor(ctx object.EvaluatorContext, arg object.Object) (int64, *sql.DB, *sql.Tx, object.Object) {
	id, ok := unpackNumber(arg)
	if !ok {
		return 0, nil, nil, ctx.NewError("database handle must be a number, got %s", arg.Type())
	}
	dbMu.Lock()
	db, found := dbConnections[id]
	tx := dbTransactions[id]
	dbMu.Unlock()
	if !found {
		return 0, nil, nil, ctx.NewError("invalid database handle %d", id)
	}
	return id, db, tx, nil
}

func sqlParams(args []object.Object) []interface{} {
	params := make([]interface{}, len(args))
	for i, arg := range args {
		params[i] = objectToGo(arg)
	}
	return params
}

func fnDbQuery() *object.Foreign {
	return &object.Foreign{
		Name: "db.query",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) < 2 {
				return ctx.NewError("db.query wants a handle and sql text")
			}
			_, db, tx, errObj := connectionFor(ctx, args[0])
			if errObj != nil {
				return errObj
			}
			query, ok := unpackString(args[1])
			if !ok {
				return ctx.NewError("db.query sql must be a string, got %s", args[1].Type())
			}

			var rows *sql.Rows
			var err error
			if tx != nil {
				rows, err = tx.Query(query, sqlParams(args[2:])...)
			} else {
				rows, err = db.Query(query, sqlParams(args[2:])...)
			}
			if err != nil {
				return ctx.NewError("query failed: %v", err)
			}
			defer rows.Close()
			return renderRows(rows)
		},
	}
}

func fnDbExec() *object.Foreign {
	return &object.Foreign{
		Name: "db.exec",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) < 2 {
				return ctx.NewError("db.exec wants a handle and sql text")
			}
			_, db, tx, errObj := connectionFor(ctx, args[0])
			if errObj != nil {
				return errObj
			}
			stmt, ok := unpackString(args[1])
			if !ok {
				return ctx.NewError("db.exec sql must be a string, got %s", args[1].Type())
			}

			var result sql.Result
			var err error
			if tx != nil {
				result, err = tx.Exec(stmt, sqlParams(args[2:])...)
			} else {
				result, err = db.Exec(stmt, sqlParams(args[2:])...)
			}
			if err != nil {
				return ctx.NewError("exec failed: %v", err)
			}

			affected, _ := result.RowsAffected()
			lastID, _ := result.LastInsertId()
			out := object.NewMap()
			out.Set(object.Intern(":rows-affected"), &object.Number{Value: number.FromInt64(affected)})
			out.Set(object.Intern(":last-insert-id"), &object.Number{Value: number.FromInt64(lastID)})
			return out
		},
	}
}

func fnDbBegin() *object.Foreign {
	return &object.Foreign{
		Name: "db.begin",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("db.begin wants a handle")
			}
			id, db, tx, errObj := connectionFor(ctx, args[0])
			if errObj != nil {
				return errObj
			}
			if tx != nil {
				return ctx.NewError("handle %d already has an open transaction", id)
			}
			newTx, err := db.Begin()
			if err != nil {
				return ctx.NewError("cannot begin transaction: %v", err)
			}
			dbMu.Lock()
			dbTransactions[id] = newTx
			dbMu.Unlock()
			return args[0]
		},
	}
}

func fnDbCommit() *object.Foreign {
	return txEnd("db.commit", func(tx *sql.Tx) error { return tx.Commit() })
}

func fnDbRollback() *object.Foreign {
	return txEnd("db.rollback", func(tx *sql.Tx) error { return tx.Rollback() })
}

func txEnd(name string, settle func(*sql.Tx) error) *object.Foreign {
	return &object.Foreign{
		Name: name,
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("%s wants a handle", name)
			}
			id, _, tx, errObj := connectionFor(ctx, args[0])
			if errObj != nil {
				return errObj
			}
			if tx == nil {
				return ctx.NewError("handle %d has no open transaction", id)
			}
			if err := settle(tx); err != nil {
				return ctx.NewError("%s failed: %v", name, err)
			}
			dbMu.Lock()
			delete(dbTransactions, id)
			dbMu.Unlock()
			return args[0]
		},
	}
}

func fnDbClose() *object.Foreign {
	return &object.Foreign{
		Name: "db.close",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("db.close wants a handle")
			}
			id, ok := unpackNumber(args[0])
			if !ok {
				return ctx.NewError("database handle must be a number, got %s", args[0].Type())
			}
			dbMu.Lock()
			if tx, found := dbTransactions[id]; found {
				tx.Rollback()
				delete(dbTransactions, id)
			}
			if db, found := dbConnections[id]; found {
				db.Close()
				delete(dbConnections, id)
			}
			dbMu.Unlock()
			return object.NIL
		},
	}
}

// renderRows maps a result set onto a vector of maps keyed by keyword
// column names.
func renderRows(rows *sql.Rows) object.Object {
	columns, _ := rows.Columns()
	var out []object.Object
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			continue
		}
		row := object.NewMap()
		for i, col := range columns {
			row.Set(object.Intern(":"+col), sqlValue(values[i]))
		}
		out = append(out, row)
	}
	return &object.Vector{Elements: out}
}

func sqlValue(v interface{}) object.Object {
	switch x := v.(type) {
	case time.Time:
		return &object.String{Value: x.Format(time.RFC3339)}
	default:
		return goToObject(v)
	}
}
