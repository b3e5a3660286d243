package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/questtrack/questtrack/apps/api/echo"
	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
	"github.com/questtrack/questtrack/core/project"
	"github.com/questtrack/questtrack/core/user"
	imagesvc "github.com/questtrack/questtrack/services/images"
	logsvc "github.com/questtrack/questtrack/services/logger"
	"github.com/questtrack/questtrack/storage/database"
	inmemdb "github.com/questtrack/questtrack/storage/database/inmem"
	sqlxrepos "github.com/questtrack/questtrack/storage/database/sqlx"
)

// engineMemory runs the API on the in-memory store, without a database server.
const engineMemory = "memory"

type repositories struct {
	tx          core.Transactor
	user        user.Repository
	project     project.Repository
	participant participant.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(os.Stdout, conf)
	dbLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	// set up DB
	var repos repositories
	if conf.Database.Engine == engineMemory {
		db := inmemdb.Open()
		repos = repositories{
			tx:          inmemdb.NewTransactor(db),
			user:        inmemdb.NewUserRepository(db),
			project:     inmemdb.NewProjectRepository(db),
			participant: inmemdb.NewParticipantRepository(db),
		}
	} else {
		db, err := database.Setup(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func(db *sqlx.DB) {
			if err := db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}(db)
		repos = repositories{
			tx:          core.NewTransactor(db),
			user:        sqlxrepos.NewUserRepository(db),
			project:     sqlxrepos.NewProjectRepository(db),
			participant: sqlxrepos.NewParticipantRepository(db),
		}
	}

	images, err := imagesvc.NewDiskStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up image storage: %v", err), err)
	}

	// set up services
	usrSvc := user.NewService(repos.user)
	prjSvc := project.NewService(repos.project, images, logger)
	ptSvc := participant.NewService(repos.tx, repos.participant, repos.project, conf.Location())

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.Deps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			ProjectSvc:     prjSvc,
			ParticipantSvc: ptSvc,
			Validate:       validate,
			Translator:     translator,
		},
	)

	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address()))
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
