package main

import (
	"log"
	"os"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	"github.com/trezcool/mafunzo/storage/database"
	sqlxrepos "github.com/trezcool/mafunzo/storage/database/sqlx"
)

var logger *log.Logger // todo: logger service

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	sqlDB, err := database.Open(conf)
	errAndDie(err)
	defer sqlDB.Close()
	errAndDie(sqlDB.Ping())
	db := database.DB{DB: sqlDB}

	// set up services
	mailSvc := emailsvc.NewConsoleService()
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(db, usrRepo, mailSvc, conf)
	courseSvc := course.NewService(db, sqlxrepos.NewCourseRepository(db))
	billSvc := billing.NewService(db, sqlxrepos.NewBillingRepository(db), courseSvc, usrSvc, mailSvc)

	// start CLI
	cli := commandLine{
		db:      sqlDB.DB,
		usrRepo: usrRepo,
		billSvc: billSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
