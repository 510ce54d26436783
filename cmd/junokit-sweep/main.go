package main

import (
	"context"
	"log"
	"os"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junocron "github.com/SwiftAkira/JunoKit-sub000/juno-cron"
	junoddb "github.com/SwiftAkira/JunoKit-sub000/juno-ddb"
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/subscriptiondao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var service = junocli.NewService("junokit-sweep")

func main() {
	flags := append(junocli.CommonFlags, junoddb.DDBFlags...)
	flags = append(flags, junows.SweepFlags...)

	app := junocli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	env := junocli.CommonOpts.Env

	api, err := junoddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}
	connections := connectiondao.Build(api, env)

	sweeper := &junows.Sweeper{
		Connections: connections,
		Sender: &junows.Sender{
			Transport:   junows.NewManagementTransport(sess),
			Connections: connections,
			Subs:        subscriptiondao.Build(api, env),
			Logger:      junocli.Logger(service),
		},
		IdleTimeout: junows.WSOpts.IdleTimeout,
		Dry:         junocli.CommonOpts.Dry,
	}

	handler := junocron.NewHandler(service, func(ctx context.Context) error {
		swept, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Int("swept", len(swept)).Msg("sweep complete")
		return nil
	})
	return handler.Start()
}
