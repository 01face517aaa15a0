package label

import "github.com/paulmach/orb"

// PointCandidate places a label next to pt in the given slot. The anchor is
// always pt shifted by the configured offset; the slot only decides which
// side of the anchor the text extends to. Rotation is 0.
func PointCandidate(pt orb.Point, cfg *Config, slot Slot) Candidate {
	if !slot.Valid() {
		slot = DefaultSlot
	}
	return Candidate{
		Anchor: orb.Point{pt[0] + cfg.OffsetX, pt[1] + cfg.OffsetY},
		Score:  1,
		Align:  slot.Align(),
	}
}

// pointCandidates returns one candidate per preferred slot with strictly
// decreasing scores, so sorting keeps the preference order.
func pointCandidates(pt orb.Point, cfg *Config) []Candidate {
	slots := cfg.PointPositionPreference
	if len(slots) == 0 {
		slots = []Slot{DefaultSlot}
	}
	out := make([]Candidate, 0, len(slots))
	for i, s := range slots {
		c := PointCandidate(pt, cfg, s)
		c.Score = 1 - float64(i)/float64(len(slots)+1)
		out = append(out, c)
	}
	return out
}
