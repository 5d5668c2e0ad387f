package db

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
)

type ConnectionProvider interface {
	GetConnection() *bun.DB
}

type connectionProviderImpl struct {
	creds view.DbCredentials
	db    *bun.DB
}

func NewConnectionProvider(creds *view.DbCredentials) ConnectionProvider {
	return &connectionProviderImpl{creds: *creds}
}

func (c *connectionProviderImpl) GetConnection() *bun.DB {
	if c.db == nil {
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", c.creds.Host, c.creds.Port)
		cfg.User = c.creds.Username
		cfg.Passwd = c.creds.Password
		cfg.DBName = c.creds.Database
		cfg.ParseTime = true
		cfg.MultiStatements = false

		sqldb, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			log.Fatalf("Failed to open database connection: %v", err)
		}
		sqldb.SetMaxOpenConns(50)
		sqldb.SetMaxIdleConns(10)

		c.db = bun.NewDB(sqldb, mysqldialect.New())
	}
	return c.db
}
