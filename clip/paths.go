package clip

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/user/clipengine/model"
)

// DefaultRoundStep is the cut-boundary tolerance within which requests share
// a content hash.
const DefaultRoundStep = 0.1

// hashPrefixLen is how much of the content hash goes into a filename.
const hashPrefixLen = 12

// clipNamespace scopes clip ids generated by this engine.
var clipNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("clipengine/clip"))

// unsafeChars matches characters not safe for filenames: / \ : * ? < > | and spaces
var unsafeChars = regexp.MustCompile(`[/\\:*?<>|\s"]`)

// sanitize replaces unsafe filename characters with underscores.
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return unsafeChars.ReplaceAllString(s, "_")
}

// Round snaps v to the nearest multiple of step.
func Round(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	r := math.Round(v/step) * step
	// Drop binary noise so 0.30000000000000004 hashes like 0.3.
	return math.Round(r*1e6) / 1e6
}

// ContentHash fingerprints the bytes a cut will produce: the source file, the
// rounded window and the encode profile.
func ContentHash(source string, start, end, step float64, profile string) string {
	key := fmt.Sprintf("%s|%.3f|%.3f|%s", source, Round(start, step), Round(end, step), profile)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ClipID derives the stable id of a logical clip from its provenance key and
// content hash. Repeating the same request yields the same id.
func ClipID(provenanceKey, contentHash string) string {
	return uuid.NewSHA1(clipNamespace, []byte(provenanceKey+"|"+contentHash)).String()
}

// Paths computes the output clip and thumbnail paths for a segment.
// Layout: <root>/<game>/p<period>/<player>/<event_type>-<HHMMSS>-<hash>.mp4
// where HHMMSS is the in-period timecode and hash is a content-hash prefix.
func Paths(root string, seg model.ClipSegment, contentHash string) (clipPath, thumbPath string) {
	folder := filepath.Join(root, sanitize(seg.GameID), fmt.Sprintf("p%d", seg.Period), sanitize(seg.PlayerID))

	total := int(math.Floor(seg.Timecode))
	if total < 0 {
		total = 0
	}
	hhmmss := fmt.Sprintf("%02d%02d%02d", total/3600, (total%3600)/60, total%60)

	prefix := contentHash
	if len(prefix) > hashPrefixLen {
		prefix = prefix[:hashPrefixLen]
	}
	base := fmt.Sprintf("%s-%s-%s", strings.ToLower(sanitize(string(seg.EventType))), hhmmss, prefix)
	return filepath.Join(folder, base+".mp4"), filepath.Join(folder, base+".jpg")
}
