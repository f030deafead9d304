package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/streetfix/streetfix/internal/domain/geofence"
	"github.com/streetfix/streetfix/pkg/logger"
)

// Constants for random number generation.
const randomFloatDivisor = 1000000

// categories mirrors the submission form's issue types.
var categories = []string{
	"Road Damage",
	"Street Lighting",
	"Drainage",
	"Garbage",
	"Vandalism",
	"Other",
}

// districts seed plausible location text.
var districts = []string{
	"East Bajac-Bajac",
	"West Bajac-Bajac",
	"East Tapinac",
	"Gordon Heights",
	"Pag-asa",
	"Mabayuan",
	"Sta. Rita",
	"Barretto",
}

var descriptionTemplates = []string{
	"Large pothole near the %s intersection has been growing for weeks and damages passing tricycles.",
	"Street light by the %s market has been out for several nights, leaving the corner completely dark.",
	"Blocked drainage along the %s main road floods the sidewalk every time it rains.",
	"Uncollected garbage pile beside the %s basketball court is attracting stray animals.",
	"Graffiti and broken fixtures at the %s waiting shed need repair and repainting.",
	"Cracked pavement outside the %s elementary school is a tripping hazard for children.",
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func pick(items []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(items))))
	return items[n.Int64()]
}

// randomCoordinate returns a point inside the service-area fence.
func randomCoordinate(fence geofence.Fence) (float64, float64) {
	lat := fence.South + getRandomFloat()*(fence.North-fence.South)
	lng := fence.West + getRandomFloat()*(fence.East-fence.West)
	return lat, lng
}

// generateReports creates synthetic reports spread across the fence.
func generateReports(ctx context.Context, config *Config, stats *Stats) []Report {
	logger.Get().Info(ctx, "generating reports", logger.Int("numReports", config.NumReports))

	fence := geofence.Default()
	reports := make([]Report, config.NumReports)
	for i := range reports {
		district := pick(districts)
		lat, lng := randomCoordinate(fence)
		reports[i] = Report{
			Category:    pick(categories),
			Description: fmt.Sprintf(pick(descriptionTemplates), district),
			Location:    fmt.Sprintf("%s, Olongapo City", district),
			Latitude:    lat,
			Longitude:   lng,
			Images:      nil,
		}
	}

	stats.ReportsGenerated = len(reports)
	return reports
}

// voterIDs allocates stable synthetic account ids for the run.
func voterIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.New().String()
	}
	return ids
}
