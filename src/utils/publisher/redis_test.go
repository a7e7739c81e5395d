package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/loteraa/verifier/src/utils/config"
	"github.com/loteraa/verifier/src/utils/monitoring"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type message struct {
	Text string `json:"text"`
}

func (self *message) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}

func TestPublishFailureIsCounted(t *testing.T) {
	conf := config.Default()
	conf.Redis.MaxElapsedTime = 200 * time.Millisecond
	conf.Redis.MaxInterval = 20 * time.Millisecond
	conf.StopTimeout = 5 * time.Second

	// Nothing listens on this port
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})

	monitor := monitoring.NewMonitor(conf)
	input := make(chan *message, 1)
	publisher := NewRedisPublisher[*message](conf, "publisher-test").
		WithClient(client).
		WithMonitor(monitor).
		WithInputChannel(input)

	require.Nil(t, publisher.Start())
	input <- &message{Text: "hello"}
	close(input)

	report := monitor.GetReport().RedisPublisher
	require.Eventually(t, func() bool {
		return report.Errors.PersistentFailure.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Greater(t, report.Errors.Publish.Load(), uint64(0))
	require.Equal(t, uint64(0), report.State.MessagesPublished.Load())

	publisher.StopWait()
}
