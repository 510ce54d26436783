package main

import (
	"log"
	"os"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junoddb "github.com/SwiftAkira/JunoKit-sub000/juno-ddb"
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/subscriptiondao"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = junocli.NewService("junokit-streams")

func main() {
	flags := append(junocli.CommonFlags, junoddb.DDBFlags...)
	flags = append(flags, junoddb.StreamFlags...)

	app := junocli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	env := junocli.CommonOpts.Env
	if junoddb.DDBOpts.TableName == "" {
		junoddb.DDBOpts.TableName = connectiondao.TableName(env)
	}

	api, err := junoddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	handler := junoddb.NewHandler(service, junoddb.Callbacks{
		OnDelete: junows.OnConnectionRemoved(subscriptiondao.Build(api, env)),
	})
	return handler.Start()
}
