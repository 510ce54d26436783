package main

import (
	"context"
	"log"
	"os"

	junoauth "github.com/SwiftAkira/JunoKit-sub000/juno-auth"
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junorest "github.com/SwiftAkira/JunoKit-sub000/juno-rest"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/notifyapi"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/publish"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var service = junocli.NewService("junokit-notify")

func main() {
	flags := append(junocli.CommonFlags, junocli.PortFlag(3002))
	flags = append(flags, junoauth.AuthFlags...)

	app := junocli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	var sink publish.Sink
	if junocli.CommonOpts.Dry {
		sink = publish.SinkFunc(func(ctx context.Context, envelope publish.Envelope) error {
			zerolog.Ctx(ctx).Info().Str("topic", envelope.Topic).RawJSON("payload", envelope.Payload).Msg("dry run, not publishing")
			return nil
		})
	} else {
		sess := session.Must(session.NewSession(aws.NewConfig()))
		sink = publish.Build(sess, junocli.CommonOpts.Env)
	}

	api := &notifyapi.API{
		Verifier: junoauth.Build(),
		Sink:     sink,
	}
	routes := junorest.Middlewares(service, chi.NewRouter())
	api.Routes(routes)
	return junorest.Webserver(service, routes)
}
