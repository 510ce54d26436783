package junosecret

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/tj/assert"
)

func TestLoadSecret(t *testing.T) {
	t.Run("requires a secret name", func(t *testing.T) {
		sess := session.Must(session.NewSession(aws.NewConfig().WithRegion("us-east-1")))
		var v struct{ APIKey string }
		err := LoadSecret(sess, "", &v)
		assert.NotNil(t, err)
		assert.Equal(t, "", v.APIKey)
	})
}
