package junokinesis

import (
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/urfave/cli/v2"
)

var KinesisOpts struct {
	StreamName string
	Replay     bool
	ReplayFrom cli.Timestamp
}

var StreamNameFlag = junocli.StringFlag("stream-name", "The stream name to read records from", &KinesisOpts.StreamName)
var ReplayFlag = junocli.BoolFlag("replay", "Whether to replay from the beginning, or start from the next record", &KinesisOpts.Replay)

var ReplayFromFlag = cli.TimestampFlag{
	Name:        "replay-from",
	Usage:       "Timestamp to replay from",
	Layout:      "2006-01-02 15:04:05",
	EnvVars:     []string{"REPLAY_FROM"},
	Destination: &KinesisOpts.ReplayFrom,
}

var KinesisFlags = []cli.Flag{
	StreamNameFlag,
	ReplayFlag,
	&ReplayFromFlag,
}
