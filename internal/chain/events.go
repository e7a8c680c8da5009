package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Events collects the contract events emitted by a transaction that callers
// care about. Ids are zero when the event was not emitted.
type Events struct {
	PostID       uint64            `json:"post_id,omitempty"`
	CommentID    uint64            `json:"comment_id,omitempty"`
	Registration *UserRegistration `json:"registration,omitempty"`
	Rewards      []RewardEvent     `json:"rewards,omitempty"`
}

func topicUint(t common.Hash) uint64 {
	return u64(new(big.Int).SetBytes(t.Bytes()))
}

func (c *Client) decodeEvents(logs []*types.Log) Events {
	var ev Events
	for _, l := range logs {
		if l == nil || l.Address != c.address || len(l.Topics) == 0 {
			continue
		}
		event, err := c.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}
		switch event.Name {
		case eventPostCreated:
			if len(l.Topics) > 1 {
				ev.PostID = topicUint(l.Topics[1])
			}
		case eventCommentAdded:
			if len(l.Topics) > 1 {
				ev.CommentID = topicUint(l.Topics[1])
			}
		case eventUserRegistered:
			if len(l.Topics) > 2 {
				ev.Registration = &UserRegistration{
					UserID:  topicUint(l.Topics[1]),
					Address: common.BytesToAddress(l.Topics[2].Bytes()),
				}
			}
		case eventRewardEarned:
			if len(l.Topics) < 2 {
				continue
			}
			values, err := event.Inputs.NonIndexed().Unpack(l.Data)
			if err != nil || len(values) != 2 {
				continue
			}
			points, _ := values[0].(*big.Int)
			source, _ := values[1].(uint8)
			ev.Rewards = append(ev.Rewards, RewardEvent{
				UserID: topicUint(l.Topics[1]),
				Points: u64(points),
				Source: RewardSource(source),
			})
		}
	}
	return ev
}
