package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

type Environment struct {
	Environment    string
	ServerAddress  string
	DatabaseURL    string
	MigrationsPath string
	Timezone       string

	DosingAPIBaseURL string
	MQTTBrokerURL    string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	SchedulerAutostart bool
}

// LoadEnvironment reads and validates env vars
func LoadEnvironment() Environment {
	env := Environment{
		Environment:    os.Getenv("APP_ENV"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerAddress:  os.Getenv("SERVER_ADDRESS"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		Timezone:       os.Getenv("TIMEZONE"),

		DosingAPIBaseURL: os.Getenv("DOSING_API_BASE_URL"),
		MQTTBrokerURL:    os.Getenv("MQTT_BROKER_URL"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		InfluxURL:    os.Getenv("INFLUX_URL"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    os.Getenv("INFLUX_ORG"),
		InfluxBucket: os.Getenv("INFLUX_BUCKET"),

		SchedulerAutostart: os.Getenv("SCHEDULER_AUTOSTART") != "false",
	}

	if env.ServerAddress == "" {
		env.ServerAddress = ":8080"
	}
	if env.MigrationsPath == "" {
		env.MigrationsPath = "./migrations"
	}
	if env.Timezone == "" {
		env.Timezone = "UTC"
	}
	// the scheduler triggers doses through its own HTTP surface by default
	if env.DosingAPIBaseURL == "" {
		env.DosingAPIBaseURL = "http://127.0.0.1:8080"
	}

	if env.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	return env
}
