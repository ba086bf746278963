// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package sec

import "time"

// SetClock overrides the codec clock for deterministic expiry tests.
func SetClock(codec *SessionCodec, now func() time.Time) {
	codec.now = now
}
