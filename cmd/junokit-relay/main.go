package main

import (
	"log"
	"os"

	junoai "github.com/SwiftAkira/JunoKit-sub000/juno-ai"
	junoauth "github.com/SwiftAkira/JunoKit-sub000/juno-auth"
	"github.com/SwiftAkira/JunoKit-sub000/juno-chat/chatdao"
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junoddb "github.com/SwiftAkira/JunoKit-sub000/juno-ddb"
	junorest "github.com/SwiftAkira/JunoKit-sub000/juno-rest"
	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/connectiondao"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/localgw"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/memstore"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/notifyapi"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/subscriptiondao"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
)

var service = junocli.NewService("junokit-relay")

func main() {
	flags := append(junocli.CommonFlags, junocli.PortFlag(3001))
	flags = append(flags, junoddb.DDBFlags...)
	flags = append(flags, junoauth.AuthFlags...)
	flags = append(flags, junoai.AIFlags...)
	flags = append(flags, junows.RelayFlags...)

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

	ai, err := junoai.Build(sess, logger)
	if err != nil {
		return err
	}

	handler := &junows.Handler{
		AI:           ai,
		Verifier:     junoauth.Build(),
		Logger:       logger,
		ConnTTL:      junows.WSOpts.ConnTTL,
		HistoryLimit: junows.WSOpts.HistoryLimit,
		SystemPrompt: junows.WSOpts.SystemPrompt,
		MaxTokens:    junoai.AIOpts.MaxTokens,
		CallbackURL:  junows.WSOpts.CallbackURL,
	}

	if junows.WSOpts.InMemory {
		handler.Connections = memstore.NewConnections()
		handler.Subs = memstore.NewSubscriptions()
		handler.Chat = memstore.NewChat()
	} else {
		api, err := junoddb.DynamoDBAPI(sess)
		if err != nil {
			return err
		}
		handler.Connections = connectiondao.Build(api, env)
		handler.Subs = subscriptiondao.Build(api, env)
		handler.Chat = chatdao.Build(api, env)
	}

	sender := &junows.Sender{
		Connections: handler.Connections,
		Subs:        handler.Subs,
		Logger:      logger,
	}
	handler.Sender = sender

	if !junocli.CommonOpts.Console {
		handler.Metrics = junocli.NewMetrics(service, cloudwatch.New(sess))
		sender.Metrics = handler.Metrics
		sender.Transport = junows.NewManagementTransport(sess)
		lambda.Start(handler.HandleEvent)
		return nil
	}

	gateway := localgw.New(logger)
	gateway.Handler = handler
	sender.Transport = gateway

	dispatcher := &junows.Dispatcher{
		Subs:   handler.Subs,
		Sender: sender,
		Logger: logger,
	}
	notify := &notifyapi.API{Verifier: handler.Verifier, Sink: dispatcher}

	routes := junorest.Middlewares(service, chi.NewRouter())
	gateway.Routes(routes)
	notify.Routes(routes)
	return junorest.Webserver(service, routes)
}
