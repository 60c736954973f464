package signalbridge

import "fmt"

// KeyMaintenanceResult reports what PerformKeyMaintenance actually did.
type KeyMaintenanceResult struct {
	SignedRotated      bool
	PostQuantumRotated bool
	OneTimeReplenished int
}

// PerformKeyMaintenance rotates the signed and post-quantum prekeys if
// their age exceeds the rotation threshold, and replenishes one-time
// prekeys up to the high-water-mark if inventory is below the
// low-water-mark (spec.md §4.2; thresholds per SPEC_FULL.md's
// SUPPLEMENTED FEATURES).
func (b *Bridge) PerformKeyMaintenance() (KeyMaintenanceResult, error) {
	var result KeyMaintenanceResult
	now := unixNow()

	spk, err := b.st.CurrentSignedPreKey()
	if err != nil {
		return result, fmt.Errorf("load signed prekey: %w", err)
	}
	if spk == nil || now-spk.CreatedAt > rotationThresholdSeconds {
		priv, pub, sig, err := b.proto.GenerateSignedPreKey(b.identityPriv)
		if err != nil {
			return result, fmt.Errorf("generate signed prekey: %w", err)
		}
		if _, err := b.st.InsertSignedPreKey(priv, pub, sig); err != nil {
			return result, fmt.Errorf("insert signed prekey: %w", err)
		}
		result.SignedRotated = true
	}

	pqk, err := b.st.CurrentPostQuantumPreKey()
	if err != nil {
		return result, fmt.Errorf("load pq prekey: %w", err)
	}
	if pqk == nil || now-pqk.CreatedAt > rotationThresholdSeconds {
		priv, pub, sig, err := b.proto.GeneratePostQuantumPreKey(b.identityPriv)
		if err != nil {
			return result, fmt.Errorf("generate pq prekey: %w", err)
		}
		if _, err := b.st.InsertPostQuantumPreKey(priv, pub, sig); err != nil {
			return result, fmt.Errorf("insert pq prekey: %w", err)
		}
		result.PostQuantumRotated = true
	}

	count, err := b.st.UnconsumedOneTimePreKeyCount()
	if err != nil {
		return result, fmt.Errorf("count one-time prekeys: %w", err)
	}
	if count < oneTimePreKeyLowWaterMark {
		need := oneTimePreKeyHighWaterMark - count
		keys, err := b.proto.GenerateOneTimePreKeys(need)
		if err != nil {
			return result, fmt.Errorf("generate one-time prekeys: %w", err)
		}
		if err := b.st.InsertOneTimePreKeys(keys); err != nil {
			return result, fmt.Errorf("insert one-time prekeys: %w", err)
		}
		result.OneTimeReplenished = need
	}

	return result, nil
}

// EnsureProvisioned runs PerformKeyMaintenance once at startup so a
// brand-new identity has a signed prekey, a post-quantum prekey, and a
// full one-time prekey inventory before the first bundle announcement.
func (b *Bridge) EnsureProvisioned() error {
	_, err := b.PerformKeyMaintenance()
	return err
}
