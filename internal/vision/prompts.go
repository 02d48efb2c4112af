package vision

import (
	"fmt"
	"strings"
)

// detectPrompt asks for combined name+geometry detection. Box coordinates
// come back on a 0-1000 scale and are normalized by the codec.
const detectPrompt = `Identify every distinct physical object in this image.
Respond with only a JSON array, no prose, in this exact form:
[{"name": "object name", "box": [yMin, xMin, yMax, xMax]}]
Coordinates are integers on a 0-1000 scale relative to the image.
Use short singular names (2-4 words). When clearly visible you may add
"brand", "color" or "size" string fields to an entry. Do not include
people, text fragments or parts of objects.`

// backfillPromptTemplate asks for geometry only, for items already named
// by an earlier detection pass.
const backfillPromptTemplate = `This image contains the following items: %s.
For each item you can locate, respond with only a JSON array in this exact
form: [{"name": "item name", "box": [yMin, xMin, yMax, xMax]}]
Coordinates are integers on a 0-1000 scale relative to the image. Use the
item names exactly as given. Omit items you cannot locate.`

// backfillPrompt renders the geometry-only prompt for a list of names.
func backfillPrompt(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, fmt.Sprintf("%q", n))
	}
	return fmt.Sprintf(backfillPromptTemplate, strings.Join(quoted, ", "))
}
