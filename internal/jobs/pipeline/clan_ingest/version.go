package clan_ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever the shape of persisted snapshot data changes.
const SchemaVersion = 3

const payloadVersionLen = 16

// PayloadVersion fingerprints a snapshot. Equal inputs always produce the
// same value.
func PayloadVersion(fetchedAt time.Time, memberCount int, clanTag string, schemaVersion int) string {
	in := fmt.Sprintf("%s|%d|%s|%d",
		fetchedAt.UTC().Format(time.RFC3339Nano),
		memberCount,
		clanTag,
		schemaVersion,
	)
	sum := sha256.Sum256([]byte(in))
	return hex.EncodeToString(sum[:])[:payloadVersionLen]
}
