package envelope

import "fmt"

// DiscoveryTopic is the single topic every agent announces its AgentCard on
// and polls to discover peers.
const DiscoveryTopic = "/waku-a2a/1/discovery/proto"

// TaskTopic returns the per-recipient topic tasks addressed to pubkey are
// published on.
func TaskTopic(pubkey string) string {
	return fmt.Sprintf("/waku-a2a/1/task/%s/proto", pubkey)
}

// AckTopic returns the per-message topic an ack for messageID is published
// on.
func AckTopic(messageID string) string {
	return fmt.Sprintf("/waku-a2a/1/ack/%s/proto", messageID)
}

// SubstratePubsubTopic is the fixed underlying pub/sub topic real Waku
// relay transports publish every content topic on.
const SubstratePubsubTopic = "/waku/2/default-waku/proto"
