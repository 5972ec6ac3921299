package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/alerts"
	"github.com/reeflab/reefdb/internal/audit"
	"github.com/reeflab/reefdb/internal/db"
	"github.com/reeflab/reefdb/internal/dosing"
	"github.com/reeflab/reefdb/internal/scheduler"
)

func main() {
	_ = godotenv.Load()
	env := LoadEnvironment()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := db.Init(env.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	if err := db.RunMigrations(env.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	store := db.NewStore()

	loc, err := time.LoadLocation(env.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", env.Timezone).Msg("invalid timezone")
	}

	var mirror *audit.InfluxMirror
	if env.InfluxURL != "" {
		mirror = audit.NewInfluxMirror(env.InfluxURL, env.InfluxToken, env.InfluxOrg, env.InfluxBucket)
		defer mirror.Close()
	}
	sink := audit.NewRecorder(store, mirror)
	alertPub := alerts.NewPublisher(env.RedisAddress, env.RedisUsername, env.RedisPassword)

	trigger := dosing.NewClient(env.DosingAPIBaseURL, 30*time.Second)
	var mqttDoser dosing.DoserClient
	if env.MQTTBrokerURL != "" {
		md, err := dosing.NewMQTTDoser(env.MQTTBrokerURL, "reefdb-server")
		if err != nil {
			log.Error().Err(err).Msg("mqtt dosers unavailable")
		} else {
			mqttDoser = md
			defer md.Close()
		}
	}
	doserClient := dosing.NewDispatcher(dosing.NewHTTPDoser(30*time.Second), mqttDoser)

	sched := scheduler.New(store, trigger, doserClient, sink, alertPub, scheduler.Config{
		Location: loc,
	})
	if env.SchedulerAutostart {
		if err := sched.Start(); err != nil {
			log.Fatal().Err(err).Msg("scheduler start")
		}
	}

	if env.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	RegisterRoutes(r, store, sched, alertPub)

	srv := &http.Server{Addr: env.ServerAddress, Handler: r}
	go func() {
		log.Info().Str("address", env.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// in-flight doses finish before the pool tears down
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}
