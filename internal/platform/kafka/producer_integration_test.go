//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"beacon/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())
}

func (s *ProducerSuite) TearDownSuite() {
	_ = s.redpanda.Container.Terminate(context.Background())
}

func (s *ProducerSuite) TestPublishJSONIsKeyed() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := NewProducer(ctx, []string{s.redpanda.Broker}, "presence.transitions")
	s.Require().NoError(err)
	defer p.Close()

	type event struct {
		Handle string `json:"handle"`
		To     string `json:"to"`
	}
	s.Require().NoError(p.PublishJSON(ctx, "alice", event{Handle: "alice", To: "away"}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics("presence.transitions"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Equal("alice", string(records[0].Key))

	var got event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event{Handle: "alice", To: "away"}, got)
}

func (s *ProducerSuite) TestNoBrokersDisablesProducer() {
	p, err := NewProducer(context.Background(), nil, "t")
	s.NoError(err)
	s.Nil(p)
	p.Close()
}
