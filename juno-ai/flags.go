package junoai

import (
	"fmt"

	junocli "github.com/SwiftAkira/JunoKit-sub000/juno-cli"
	junosecret "github.com/SwiftAkira/JunoKit-sub000/juno-secret"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
)

var AIOpts struct {
	Provider   string
	Model      string
	SecretName string
	MaxTokens  int
}

var AIFlags = []cli.Flag{
	junocli.StringFlag("ai-provider", "Completion provider: bedrock or anthropic", &AIOpts.Provider, ProviderBedrock),
	junocli.StringFlag("ai-model", "Model id passed to the provider", &AIOpts.Model, "anthropic.claude-3-haiku-20240307-v1:0"),
	junocli.StringFlag("ai-secret-name", "Secrets Manager secret holding {\"apiKey\": ...} for the anthropic provider", &AIOpts.SecretName),
	junocli.IntFlag("ai-max-tokens", "Maximum tokens per completion", &AIOpts.MaxTokens, 1024),
}

// Build constructs the configured Completer. A secret that fails to load
// leaves the key empty so that completions degrade instead of the service
// failing to start.
func Build(s *session.Session, logger zerolog.Logger) (Completer, error) {
	switch AIOpts.Provider {
	case ProviderBedrock:
		return &Bedrock{API: bedrockruntime.New(s), ModelID: AIOpts.Model}, nil

	case ProviderAnthropic:
		var secret struct {
			APIKey string `json:"apiKey"`
		}
		if err := junosecret.LoadSecret(s, AIOpts.SecretName, &secret); err != nil {
			logger.Warn().Err(err).Msg("unable to load ai secret; completions will fall back")
		}
		return NewAnthropic(secret.APIKey, AIOpts.Model), nil

	default:
		return nil, fmt.Errorf("unknown ai provider %q", AIOpts.Provider)
	}
}
