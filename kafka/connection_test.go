package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/kafka"
	"github.com/Skyrin/go-migrate/kafka/msk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConn(t *testing.T) {
	t.Run("no address", func(t *testing.T) {
		_, err := kafka.NewConn(kafka.ConnectionConfig{})
		require.Error(t, err)
		assert.True(t, e.Contains(err, kafka.ECode080001))
	})

	t.Run("unreachable broker", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		c, err := kafka.NewConn(kafka.ConnectionConfig{
			AddressList: []string{"127.0.0.1:1"},
			Context:     ctx,
		})
		require.Error(t, err)
		assert.True(t, e.Contains(err, kafka.ECode080002))
		require.NotNil(t, c)

		// Writers and readers do not need a live connection to be built
		w := c.NewWriter("migrate-events")
		assert.Equal(t, "migrate-events", w.Topic)
		assert.Equal(t, 1, w.BatchSize)
		assert.Equal(t, kafka.WriterBatchTimeout, w.BatchTimeout)
		r := c.NewReader("migrate-events", "")
		assert.Equal(t, "migrate-events", r.Config().Topic)
		require.NoError(t, r.Close())
	})
}

func TestNewSASLMechanism(t *testing.T) {
	_, err := msk.NewSASLMechanism(context.Background(), msk.SASLMechanismConfig{})
	require.Error(t, err)
	assert.True(t, e.Contains(err, msk.ECode080101))

	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	sm, err := msk.NewSASLMechanism(context.Background(), msk.SASLMechanismConfig{Region: "eu-south-1"})
	require.NoError(t, err)
	assert.Equal(t, "AWS_MSK_IAM", sm.Name())
}
