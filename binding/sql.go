package binding

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/hhkbp2/esbench"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	PropertyMysqlHost            = "mysql.host"
	PropertyMysqlHostDefault     = "127.0.0.1"
	PropertyMysqlPort            = "mysql.port"
	PropertyMysqlPortDefault     = "3306"
	PropertyMysqlDatabase        = "mysql.db"
	PropertyMysqlDatabaseDefault = "db"
	PropertyMysqlUser            = "mysql.user"
	PropertyMysqlUserDefault     = "user"
	PropertyMysqlPassword        = "mysql.password"
	PropertyMysqlPasswordDefault = "password"
	PropertyMysqlOptions         = "mysql.options"
	PropertyMysqlOptionsDefault  = "charset=utf8"

	PropertySqlitePath        = "sqlite.path"
	PropertySqlitePathDefault = "esbench.db"

	// The call timeout applied to every statement.
	PropertySQLTimeout        = "sql.timeout"
	PropertySQLTimeoutDefault = "600s"
	// Create the index table on Init if it does not exist.
	PropertySQLCreateTable        = "sql.createtable"
	PropertySQLCreateTableDefault = "true"

	DialectMysql  = "mysql"
	DialectSqlite = "sqlite"
)

var (
	regexTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// SQLDB stores documents in a table with one (id, field, value) row per
// document field, so that any document shape fits one schema.
type SQLDB struct {
	*esbench.DBBase
	dialect     string
	timeout     time.Duration
	createTable bool
	db          *sql.DB
}

func NewSQLDB(dialect string) *SQLDB {
	return &SQLDB{
		DBBase:  esbench.NewDBBase(),
		dialect: dialect,
	}
}

func NewMysqlDB() *SQLDB {
	return NewSQLDB(DialectMysql)
}

func NewSqliteDB() *SQLDB {
	return NewSQLDB(DialectSqlite)
}

func parseMysqlOptions(options string) (map[string]string, error) {
	params := make(map[string]string)
	for _, kv := range strings.Split(options, "&") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, esbench.NewConfigurationError("invalid %s: %s", PropertyMysqlOptions, options)
		}
		params[parts[0]] = parts[1]
	}
	return params, nil
}

func (self *SQLDB) dataSourceName() (string, string, error) {
	props := self.GetProperties()
	switch self.dialect {
	case DialectMysql:
		params, err := parseMysqlOptions(props.GetDefault(PropertyMysqlOptions, PropertyMysqlOptionsDefault))
		if err != nil {
			return "", "", err
		}
		conf := mysql.NewConfig()
		conf.User = props.GetDefault(PropertyMysqlUser, PropertyMysqlUserDefault)
		conf.Passwd = props.GetDefault(PropertyMysqlPassword, PropertyMysqlPasswordDefault)
		conf.Net = "tcp"
		conf.Addr = net.JoinHostPort(
			props.GetDefault(PropertyMysqlHost, PropertyMysqlHostDefault),
			props.GetDefault(PropertyMysqlPort, PropertyMysqlPortDefault))
		conf.DBName = props.GetDefault(PropertyMysqlDatabase, PropertyMysqlDatabaseDefault)
		conf.Params = params
		conf.Timeout = self.timeout
		return "mysql", conf.FormatDSN(), nil
	case DialectSqlite:
		return "sqlite", props.GetDefault(PropertySqlitePath, PropertySqlitePathDefault), nil
	default:
		return "", "", esbench.NewConfigurationError("unsupported sql dialect: %s", self.dialect)
	}
}

func (self *SQLDB) Init() error {
	props := self.GetProperties()
	var err error
	if self.timeout, err = props.GetDuration(PropertySQLTimeout, PropertySQLTimeoutDefault); err != nil {
		return err
	}
	if self.createTable, err = props.GetBool(PropertySQLCreateTable, PropertySQLCreateTableDefault); err != nil {
		return err
	}
	driver, dsn, err := self.dataSourceName()
	if err != nil {
		return err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	if self.dialect == DialectSqlite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if self.createTable {
		if err := self.ensureTable(db); err != nil {
			db.Close()
			return err
		}
	}
	self.db = db
	return nil
}

func (self *SQLDB) ensureTable(db *sql.DB) error {
	table, err := tableName(self.GetProperties().GetDefault(esbench.PropertyIndexName, esbench.PropertyIndexNameDefault))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), self.timeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, createTableStat(table)); err != nil {
		return esbench.NewBackendError("create table", err)
	}
	return nil
}

func (self *SQLDB) Cleanup() error {
	if self.db == nil {
		return nil
	}
	err := self.db.Close()
	self.db = nil
	return err
}

func tableName(index string) (string, error) {
	if !regexTableName.MatchString(index) {
		return "", esbench.NewConfigurationError("invalid table name: %q", index)
	}
	return index, nil
}

func createTableStat(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"id VARCHAR(64) NOT NULL, "+
		"field VARCHAR(64) NOT NULL, "+
		"value TEXT, "+
		"PRIMARY KEY (id, field))", table)
}

func (self *SQLDB) Count(ctx context.Context, index string) (int64, error) {
	table, err := tableName(index)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	var count int64
	row := self.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT id) FROM %s", table))
	if err := row.Scan(&count); err != nil {
		return 0, esbench.NewBackendError("count", err)
	}
	return count, nil
}

func (self *SQLDB) Get(ctx context.Context, index string, docType string, id string) (esbench.Document, error) {
	table, err := tableName(index)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	rows, err := self.db.QueryContext(ctx, fmt.Sprintf("SELECT field, value FROM %s WHERE id = ?", table), id)
	if err != nil {
		return nil, esbench.NewBackendError("get", err)
	}
	defer rows.Close()
	doc := make(esbench.Document)
	for rows.Next() {
		var field string
		var value sql.NullString
		if err := rows.Scan(&field, &value); err != nil {
			return nil, esbench.NewBackendError("get", err)
		}
		doc[field] = value.String
	}
	if err := rows.Err(); err != nil {
		return nil, esbench.NewBackendError("get", err)
	}
	if len(doc) == 0 {
		return nil, esbench.NewBackendError("get", errors.Errorf("document %s/%s not found", index, id))
	}
	return doc, nil
}

func (self *SQLDB) Search(ctx context.Context, index string, query *esbench.Query, size int) ([]*esbench.Hit, error) {
	table, err := tableName(index)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	statement := fmt.Sprintf(
		"SELECT DISTINCT id FROM %s WHERE field = ? AND value LIKE ? ORDER BY id LIMIT ?", table)
	rows, err := self.db.QueryContext(ctx, statement, query.Field, "%"+query.Text+"%", size)
	if err != nil {
		return nil, esbench.NewBackendError("search", err)
	}
	defer rows.Close()
	hits := make([]*esbench.Hit, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, esbench.NewBackendError("search", err)
		}
		hits = append(hits, &esbench.Hit{ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, esbench.NewBackendError("search", err)
	}
	return hits, nil
}

// Index replaces all the rows of the document in one transaction.
func (self *SQLDB) Index(ctx context.Context, index string, docType string, id string, doc esbench.Document) error {
	table, err := tableName(index)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	tx, err := self.db.BeginTx(ctx, nil)
	if err != nil {
		return esbench.NewBackendError("index", err)
	}
	if err := self.replaceRows(ctx, tx, table, id, doc); err != nil {
		tx.Rollback()
		return esbench.NewBackendError("index", err)
	}
	if err := tx.Commit(); err != nil {
		return esbench.NewBackendError("index", err)
	}
	return nil
}

// BulkIndex replaces the rows of every document of the batch in one
// transaction. The batch is indexed entirely or not at all.
func (self *SQLDB) BulkIndex(ctx context.Context, index string, docType string, items []esbench.BulkItem) (int, error) {
	table, err := tableName(index)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, self.timeout)
	defer cancel()
	tx, err := self.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, esbench.NewBackendError("bulk", err)
	}
	for _, item := range items {
		if err := self.replaceRows(ctx, tx, table, item.ID, item.Doc); err != nil {
			tx.Rollback()
			return 0, esbench.NewBackendError("bulk", errors.Wrapf(err, "document %s", item.ID))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, esbench.NewBackendError("bulk", err)
	}
	return len(items), nil
}

func (self *SQLDB) replaceRows(ctx context.Context, tx *sql.Tx, table string, id string, doc esbench.Document) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (id, field, value) VALUES (?, ?, ?)", table))
	if err != nil {
		return err
	}
	defer stmt.Close()
	fields := make([]string, 0, len(doc))
	for k := range doc {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if _, err := stmt.ExecContext(ctx, id, field, fmt.Sprintf("%v", doc[field])); err != nil {
			return err
		}
	}
	return nil
}
