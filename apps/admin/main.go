package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	logsvc "github.com/Cherif0104/EcosystIA-sub000/services/logger"
	"github.com/Cherif0104/EcosystIA-sub000/storage/database"
	sqlxrepos "github.com/Cherif0104/EcosystIA-sub000/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf).Named("admin"), conf)
	logger.Enable(false)

	if conf.Database.InMemory() {
		logger.Fatal("the admin commands need a PostgreSQL database", errors.New("in-memory database engine"))
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal("pinging database", err)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
