package signalbridge

import (
	"fmt"

	"github.com/dustingooding/radix-relay/internal/wire"
)

// CreateSubscriptionForSelf returns a REQ filter (spec.md §6) asking the
// relay for messages addressed to this node since a timestamp (default:
// persisted "last seen").
func (b *Bridge) CreateSubscriptionForSelf(subscriptionID string, sinceTimestamp *uint64) (string, error) {
	since := sinceTimestamp
	if since == nil {
		lastSeen, err := b.st.GetLastSeen()
		if err != nil {
			return "", fmt.Errorf("load last seen: %w", err)
		}
		since = &lastSeen
	}

	filter := map[string]any{
		"kinds": []int{int(wire.KindEncryptedMessage)},
		"#p":    []string{b.busPubkey},
		"since": *since,
	}
	req, err := wire.SerializeReq(subscriptionID, filter)
	if err != nil {
		return "", err
	}
	return string(req), nil
}

// CreateIdentitiesSubscription builds the filter auto-subscribing to
// BUNDLE_ANNOUNCEMENT events (spec.md §4.6 "Auto-subscribe to
// identities").
func (b *Bridge) CreateIdentitiesSubscription(subscriptionID string) (string, error) {
	filter := map[string]any{
		"kinds": []int{int(wire.KindBundleAnnouncement)},
		"#d":    []string{wire.BundleAnnouncementDTag},
	}
	req, err := wire.SerializeReq(subscriptionID, filter)
	if err != nil {
		return "", err
	}
	return string(req), nil
}

// UpdateLastMessageTimestamp monotonically advances the "last seen"
// watermark (spec.md §4.2 invariant I3).
func (b *Bridge) UpdateLastMessageTimestamp(ts uint64) error {
	return b.st.UpdateLastSeen(ts)
}
