package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdmin implements the ClusterAdmin calls EnsureTopic makes; anything else panics.
type fakeAdmin struct {
	sarama.ClusterAdmin
	topics    map[string]int32
	createErr error
	created   map[string]*sarama.TopicDetail
	expanded  map[string]int32
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		topics:   map[string]int32{},
		created:  map[string]*sarama.TopicDetail{},
		expanded: map[string]int32{},
	}
}

func (f *fakeAdmin) DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error) {
	var out []*sarama.TopicMetadata
	for _, t := range topics {
		n, ok := f.topics[t]
		if !ok {
			out = append(out, &sarama.TopicMetadata{Name: t, Err: sarama.ErrUnknownTopicOrPartition})
			continue
		}
		md := &sarama.TopicMetadata{Name: t, Err: sarama.ErrNoError}
		for i := int32(0); i < n; i++ {
			md.Partitions = append(md.Partitions, &sarama.PartitionMetadata{ID: i})
		}
		out = append(out, md)
	}
	return out, nil
}

func (f *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created[topic] = detail
	f.topics[topic] = detail.NumPartitions
	return nil
}

func (f *fakeAdmin) CreatePartitions(topic string, count int32, _ [][]int32, _ bool) error {
	f.expanded[topic] = count
	f.topics[topic] = count
	return nil
}

func TestEnsureTopicCreates(t *testing.T) {
	admin := newFakeAdmin()
	require.NoError(t, EnsureTopic(admin, "janus-events", Config{PartitionsPerTopic: 4, ReplicationFactor: 3}, nil))

	td := admin.created["janus-events"]
	require.NotNil(t, td)
	assert.Equal(t, int32(4), td.NumPartitions)
	assert.Equal(t, int16(3), td.ReplicationFactor)
	assert.Equal(t, "2", *td.ConfigEntries["min.insync.replicas"])
}

func TestEnsureTopicExpandsOnly(t *testing.T) {
	admin := newFakeAdmin()
	admin.topics["janus-events"] = 2
	require.NoError(t, EnsureTopic(admin, "janus-events", Config{PartitionsPerTopic: 6}, nil))
	assert.Equal(t, int32(6), admin.expanded["janus-events"])

	admin.expanded = map[string]int32{}
	require.NoError(t, EnsureTopic(admin, "janus-events", Config{PartitionsPerTopic: 3}, nil))
	assert.Empty(t, admin.expanded)
	assert.Empty(t, admin.created)
}

func TestEnsureTopicCreateRace(t *testing.T) {
	admin := newFakeAdmin()
	admin.createErr = &sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}
	assert.NoError(t, EnsureTopic(admin, "janus-events", Config{}, nil))

	admin.createErr = sarama.ErrClusterAuthorizationFailed
	assert.Error(t, EnsureTopic(admin, "janus-events", Config{}, nil))
}
