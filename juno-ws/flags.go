package junows

import (
	"time"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	"github.com/urfave/cli/v2"
)

var WSOpts struct {
	CallbackURL  string
	ConnTTL      time.Duration
	HistoryLimit int
	SystemPrompt string
	Concurrency  int
	IdleTimeout  time.Duration
	InMemory     bool
}

var CallbackURLFlag = junocli.StringFlag("callback-url", "Management API endpoint used to reach connections; derived from requests when empty", &WSOpts.CallbackURL)
var ConnTTLFlag = junocli.DurationFlag("conn-ttl", "Lifetime of connection records", &WSOpts.ConnTTL, DefaultConnTTL)
var HistoryLimitFlag = junocli.IntFlag("history-limit", "Number of prior turns sent to the AI", &WSOpts.HistoryLimit, DefaultHistoryLimit)
var SystemPromptFlag = junocli.StringFlag("system-prompt", "System prompt for relayed chat", &WSOpts.SystemPrompt, DefaultSystemPrompt)
var ConcurrencyFlag = junocli.IntFlag("concurrency", "Max concurrent notification deliveries", &WSOpts.Concurrency, DefaultConcurrency)
var IdleTimeoutFlag = junocli.DurationFlag("idle-timeout", "Connections idle longer than this are closed by the sweeper", &WSOpts.IdleTimeout, 2*time.Hour)
var InMemoryFlag = junocli.BoolFlag("in-memory", "Use in-process stores instead of DynamoDB (console mode)", &WSOpts.InMemory)

var RelayFlags = []cli.Flag{
	CallbackURLFlag,
	ConnTTLFlag,
	HistoryLimitFlag,
	SystemPromptFlag,
	InMemoryFlag,
}

var DispatchFlags = []cli.Flag{
	CallbackURLFlag,
	ConcurrencyFlag,
}

var SweepFlags = []cli.Flag{
	IdleTimeoutFlag,
}
