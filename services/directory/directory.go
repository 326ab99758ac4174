// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/ixdir/core"
	"github.com/relabs-tech/ixdir/core/access"
	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/directory/api"
	"github.com/relabs-tech/ixdir/events"
	"github.com/relabs-tech/ixdir/media"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Port             string `env:"PORT,default=3000" description:"the port the service listens on"`
	SessionSecret    string `env:"SESSION_SECRET,required" description:"HMAC secret for session tokens"`
	SessionIssuer    string `env:"SESSION_ISSUER,default=ixdir" description:"issuer for session tokens"`
	KafkaBrokers     string `env:"KAFKA_BROKERS,optional" description:"comma separated Kafka brokers for change events"`
	KafkaTopic       string `env:"KAFKA_TOPIC,default=directory_events" description:"Kafka topic for change events"`
	MediaDriver      string `env:"MEDIA_DRIVER,optional" description:"media driver, Local or AWSS3"`
	MediaBasePath    string `env:"MEDIA_BASE_PATH,optional" description:"base path for the local media driver"`
	S3Region         string `env:"MEDIA_S3_REGION,optional" description:"region for the S3 media driver"`
	S3Bucket         string `env:"MEDIA_S3_BUCKET,optional" description:"bucket for the S3 media driver"`
	S3AccessID       string `env:"MEDIA_S3_ACCESS_ID,optional" description:"access id for the S3 media driver"`
	S3AccessKey      string `env:"MEDIA_S3_ACCESS_KEY,optional" description:"access key for the S3 media driver"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"log level"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	logLevel, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.InitLogger(logLevel)
	rlog := logger.Default()

	db := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, "directory")
	defer db.Close()

	var notifier core.Notifier
	if service.KafkaBrokers != "" {
		kafkaNotifier := events.NewKafkaNotifier(&events.KafkaNotifierBuilder{
			DB:      db,
			Brokers: strings.Split(service.KafkaBrokers, ","),
			Topic:   service.KafkaTopic,
		})
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	router := mux.NewRouter()
	api.NewAPI(&api.Builder{
		DB:            db,
		Router:        router,
		Notifier:      notifier,
		SessionSecret: []byte(service.SessionSecret),
		SessionIssuer: service.SessionIssuer,
		MediaConfiguration: media.Configuration{
			DriverType: media.DriverType(service.MediaDriver),
			LocalConfiguration: &media.LocalConfiguration{
				BasePath: service.MediaBasePath,
			},
			S3Configuration: &media.S3Configuration{
				AWSRegion:     service.S3Region,
				AWSBucketName: service.S3Bucket,
				AccessID:      service.S3AccessID,
				AccessKey:     service.S3AccessKey,
				KeyPrefix:     "directory/",
			},
		},
	})

	if err := access.EnsureFunctionAccounts(db, access.FunctionAccount{
		Identity:  "admin@ixdir",
		Superuser: true,
	}); err != nil {
		panic(err)
	}

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(handlers.CompressHandler(router))

	rlog.Infoln("listen on port :" + service.Port)
	if err := http.ListenAndServe(":"+service.Port, handler); err != nil {
		rlog.WithError(err).Fatal("server stopped")
	}
}
