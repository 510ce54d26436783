package main

import (
	"log"
	"os"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junoddb "github.com/SwiftAkira/JunoKit-sub000/juno-ddb"
	junokinesis "github.com/SwiftAkira/JunoKit-sub000/juno-kinesis"
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/publish"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/subscriptiondao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"
)

var service = junocli.NewService("junokit-dispatch")

func main() {
	flags := append(junocli.CommonFlags, junoddb.DDBFlags...)
	flags = append(flags, junokinesis.KinesisFlags...)
	flags = append(flags, junows.DispatchFlags...)

	app := junocli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	logger := junocli.Logger(service)
	sess := session.Must(session.NewSession(aws.NewConfig()))
	env := junocli.CommonOpts.Env

	api, err := junoddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}
	subs := subscriptiondao.Build(api, env)
	metrics := junocli.NewMetrics(service, cloudwatch.New(sess))

	dispatcher := &junows.Dispatcher{
		Subs: subs,
		Sender: &junows.Sender{
			Transport:   junows.NewManagementTransport(sess),
			Connections: connectiondao.Build(api, env),
			Subs:        subs,
			Metrics:     metrics,
			Logger:      logger,
		},
		Metrics:     metrics,
		Logger:      logger,
		Concurrency: junows.WSOpts.Concurrency,
	}

	handler := junokinesis.NewHandler(service, publish.StreamName(env), dispatcher.HandleRecord)
	return handler.Start()
}
