// Package trending flags the extensions gaining downloads fastest.
package trending

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vicinaehq/backend/internal/storesrv/db/models"
)

const day = 24 * time.Hour

type Params struct {
	// Window caps how far back the age of an extension is measured.
	Window       time.Duration
	MinDownloads int64
	// MinVelocity is in downloads per day.
	MinVelocity   float64
	TopPercentile float64
}

func DefaultParams() Params {
	return Params{
		Window:        7 * day,
		MinDownloads:  10,
		MinVelocity:   2.0,
		TopPercentile: 0.20,
	}
}

type scored struct {
	in       models.RankingInput
	velocity float64
}

// Velocity is downloads per day since the later of creation and the start of the window.
// Ages below one day count as one day.
func Velocity(in models.RankingInput, now time.Time, window time.Duration) float64 {
	start := now.Add(-window)
	if in.CreatedAt.After(start) {
		start = in.CreatedAt
	}
	ageDays := math.Max(1, now.Sub(start).Hours()/24)
	return float64(in.DownloadCount) / ageDays
}

// Rank returns the ids of the trending extensions, fastest first. Candidates need at least
// MinDownloads downloads and MinVelocity velocity; the top TopPercentile of them, rounded
// up and never fewer than one, are trending.
func Rank(inputs []models.RankingInput, now time.Time, p Params) []uuid.UUID {
	var candidates []scored
	for _, in := range inputs {
		if in.DownloadCount < p.MinDownloads {
			continue
		}
		v := Velocity(in, now, p.Window)
		if v < p.MinVelocity {
			continue
		}
		candidates = append(candidates, scored{in: in, velocity: v})
	}
	if len(candidates) == 0 {
		return []uuid.UUID{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.velocity != b.velocity {
			return a.velocity > b.velocity
		}
		if a.in.DownloadCount != b.in.DownloadCount {
			return a.in.DownloadCount > b.in.DownloadCount
		}
		return bytes.Compare(a.in.ID[:], b.in.ID[:]) < 0
	})

	n := int(math.Ceil(float64(len(candidates)) * p.TopPercentile))
	n = min(max(n, 1), len(candidates))
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = candidates[i].in.ID
	}
	return out
}
