package junoddb

import (
	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	DAXCluster string
	DAXRegion  string
	Endpoint   string
	TableName  string
}

var DAXClusterFlag = junocli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var DAXRegionFlag = junocli.StringFlag("dax-region", "The region of the DAX cluster", &DDBOpts.DAXRegion, "us-east-1")
var EndpointFlag = junocli.StringFlag("dynamodb-endpoint", "Override the DynamoDB endpoint, e.g. http://localhost:8000", &DDBOpts.Endpoint)
var TableNameFlag = junocli.StringFlag("table-name", "The table name to read streams from", &DDBOpts.TableName)

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	DAXRegionFlag,
	EndpointFlag,
}

var StreamFlags = []cli.Flag{
	TableNameFlag,
}
