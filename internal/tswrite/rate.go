package tswrite

// pcrHz is the frequency, in Hz, of the 27 MHz system clock PCR values are
// expressed against.
const pcrHz = 27_000_000.0

// packetMeta is producer-local bookkeeping for one packet accumulated into
// the item currently being built.
type packetMeta struct {
	index  int64
	pid    uint16
	hasPCR bool
	pcr    uint64 // already scaled by PCRScale
}

// rateState holds the PCR-locked rate controller's running state: the
// credit pool that smooths instantaneous PCR-derived rates across
// PrimeSize items, and the bookkeeping needed to detect PCR discontinuities
// and to "undo" the initial rate guess once the real rate is known.
//
// These fields were static function-local accumulators in the reference
// implementation; making them explicit struct fields is what allows more
// than one engine to run in the same process (spec §9).
type rateState struct {
	availableBytes  float64
	availableTimeUs float64

	rate float64 // best current bytes/sec estimate, seeded from ByteRate

	hadFirstPCR  bool
	hadSecondPCR bool
	lastPCR      uint64
	lastPCRIndex int64

	initialPrimeTime  float64
	initialPrimeBytes float64

	lastTimestampUs float64
}

func newRateState(cfg PacingConfig) *rateState {
	return &rateState{rate: cfg.ByteRate}
}

// prime (re)seeds the credit pool from the current rate estimate. Called
// whenever the pool has been exhausted or reset by a discontinuity.
func (rs *rateState) prime(cfg PacingConfig, itemSize int) {
	rs.availableBytes = float64(itemSize) * float64(cfg.PrimeSize)
	rs.availableTimeUs = rs.availableBytes * 1e6 / (rs.rate * float64(cfg.PrimeSpeedup) / 100.0)
	if !rs.hadSecondPCR {
		rs.initialPrimeTime = rs.availableTimeUs
		rs.initialPrimeBytes = rs.availableBytes
	}
}

// assignTimestamp implements the §4.2 PCR-mode algorithm: it primes the
// credit pool if needed, deducts this item's cost from the pool to get the
// item's Δt, and folds in any PCR observed among the item's packets.
func (rs *rateState) assignTimestamp(cfg PacingConfig, itemSize int, numBytes int, metas []packetMeta) (timeUs int64, discontinuity bool) {
	if rs.availableBytes <= 0 || rs.availableTimeUs <= 0 {
		rs.prime(cfg, itemSize)
	}

	deltaT := (float64(numBytes) / rs.availableBytes) * rs.availableTimeUs
	timestamp := rs.lastTimestampUs + deltaT
	rs.availableBytes -= float64(numBytes)
	rs.availableTimeUs -= deltaT

	// First PCR occurrence in this item wins; later ones in the same item
	// are ignored, matching the reference scan-and-break behavior.
	var found *packetMeta
	for i := range metas {
		if metas[i].hasPCR {
			found = &metas[i]
			break
		}
	}

	if found != nil {
		switch {
		case rs.hadFirstPCR && found.pcr < rs.lastPCR:
			// PCR rollback: treat as a discontinuity and force a re-prime
			// on the next item.
			rs.hadFirstPCR = false
			rs.hadSecondPCR = false
			rs.availableBytes = 0
			rs.availableTimeUs = 0
			discontinuity = true

		case !rs.hadFirstPCR:
			rs.hadFirstPCR = true

		default:
			deltaPCR := found.pcr - rs.lastPCR
			deltaBytes := float64(found.index-rs.lastPCRIndex) * tsPacketSize
			if deltaPCR > 0 {
				rs.rate = deltaBytes * pcrHz / float64(deltaPCR)
			}
			extraTime := deltaBytes * 1e6 / rs.rate
			rs.availableBytes += deltaBytes
			rs.availableTimeUs += extraTime

			if !rs.hadSecondPCR {
				rs.availableTimeUs -= rs.initialPrimeTime
				rs.availableTimeUs += rs.initialPrimeBytes * 1e6 / rs.rate
				rs.hadSecondPCR = true
			}
		}
		rs.lastPCR = found.pcr
		rs.lastPCRIndex = found.index
	}

	rs.lastTimestampUs = timestamp
	return int64(timestamp), discontinuity
}

// assignTimestampPlain implements the §4.2 plain-mode algorithm: a
// constant-rate Δt with no PCR involvement at all.
func (rs *rateState) assignTimestampPlain(cfg PacingConfig, numBytes int) int64 {
	deltaT := float64(numBytes) * 1e6 / cfg.ByteRate
	timestamp := rs.lastTimestampUs + deltaT
	rs.lastTimestampUs = timestamp
	return int64(timestamp)
}
