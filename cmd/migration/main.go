package main

import (
	"bufio"
	"flag"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/service"
)

// Usage examples on the command line:
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go -file=../../scripts/members_mysql.sql
// > DBDRIVER=postgres DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go -file=../../scripts/members_postgres.sql
func main() {
	filePtr := flag.String("file", "members_mysql.sql", "the sql file to execute")
	configPtr := flag.String("config", "", "optional YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPtr)
	if err != nil {
		panic(err)
	}
	sqlDB, err := service.CreateDatabase(cfg.Store)
	if err != nil {
		panic(err)
	}
	db := sqlx.NewDb(sqlDB, cfg.Store.Driver)
	defer db.Close()

	readFile, err := os.Open(*filePtr) // nosemgrep
	if err != nil {
		panic(err)
	}
	defer readFile.Close()

	statements := 0
	fileScanner := bufio.NewScanner(readFile)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for fileScanner.Scan() {
		line := fileScanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			db.MustExec(builder.String())
			statements++
			builder = strings.Builder{}
		}
	}
	if err := fileScanner.Err(); err != nil {
		panic(err)
	}
	logger.Info("migration applied", "file", *filePtr, "statements", statements, "driver", cfg.Store.Driver)
}
