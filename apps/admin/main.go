package main

import (
	"context"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
	"github.com/trezcool/ismis/services/identity"
	logsvc "github.com/trezcool/ismis/services/logger"
	"github.com/trezcool/ismis/storage"
	"github.com/trezcool/ismis/storage/database"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		panic(err)
	}
	defer func() { _ = zl.Sync() }()
	rl := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	rl.Enable(false)
	logger = rl

	ctx := context.Background()
	cli := commandLine{}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		// set up DB without migrating it
		errAndDie(database.CreateIfNotExist(ctx, conf))
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		cli.db = db.DB
	} else {
		repos, err := storage.Open(ctx, conf)
		errAndDie(err)
		defer repos.Close()

		idp, err := identity.New(ctx, conf, repos.Credentials)
		errAndDie(err)
		if auth, ok := idp.(user.PasswordAuthenticator); ok {
			cli.tokens = auth
		}

		validate := newValidator()
		cli.usrSvc = user.NewService(repos.Users, idp, student.NewService(repos.Students, validate), validate, logger)
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}

func newValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	return validate
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
