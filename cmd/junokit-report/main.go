package main

import (
	"context"
	"log"
	"os"
	"time"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junoddb "github.com/SwiftAkira/JunoKit-sub000/juno-ddb"
	junoreport "github.com/SwiftAkira/JunoKit-sub000/juno-report"
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/urfave/cli/v2"
)

var service = junocli.NewService("junokit-report")

func main() {
	flags := append(junocli.CommonFlags, junoddb.DDBFlags...)
	flags = append(flags, junoreport.ReportFlags...)

	app := junocli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))

	api, err := junoddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}
	connections := connectiondao.Build(api, junocli.CommonOpts.Env)

	handler := junoreport.NewHandler(service, s3.New(sess), "presence", func(ctx context.Context) (interface{}, error) {
		return junows.Presence(ctx, connections, time.Now())
	})
	return handler.Start()
}
