package domain

import "github.com/gosimple/slug"

// DefaultTopicKey is the storage key of the catch-all backup batch.
const DefaultTopicKey = "general-knowledge"

// TopicKey normalizes a free-form topic into a storage key ("World History!" -> "world-history").
func TopicKey(topic string) string {
	key := slug.Make(topic)
	if key == "" {
		return DefaultTopicKey
	}
	return key
}
