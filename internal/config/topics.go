package config

// NSQ topics and channels used by the sync pipeline.
const (
	TopicContentSync = "content.sync"

	ChannelIndexer = "indexer"
)
