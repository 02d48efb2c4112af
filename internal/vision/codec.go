// codec.go: builds multimodal requests and decodes/validates model
// responses. Parsing failures never escape this boundary; they downgrade
// to an empty result.
package vision

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"strings"

	"github.com/antonholmquist/jason"
	"golang.org/x/image/draw"

	"github.com/tallycam/tallycam-go/internal/detection"
	"github.com/tallycam/tallycam-go/internal/observability/metrics"
)

// Result is one raw, validated item decoded from a detection response.
type Result struct {
	Name     string
	Box      *detection.BoundingBox // nil when the response had no usable box
	Brand    string
	Color    string
	Size     string
	Category string
}

// NamedBox is one geometry result from a backfill response.
type NamedBox struct {
	Name string
	Box  detection.BoundingBox
}

// Request/response wire types for the vision endpoint.

type requestBody struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// buildRequestBody assembles the JSON body for a prompt and an
// already-encoded JPEG payload.
func buildRequestBody(prompt, imageB64 string, maxTokens int) ([]byte, error) {
	body := requestBody{
		Contents: []requestContent{{
			Parts: []requestPart{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: imageB64}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			TopK:            20,
			TopP:            0.8,
			MaxOutputTokens: maxTokens,
		},
	}
	return json.Marshal(&body)
}

// prepareImage downscales a JPEG to at most maxWidth and re-encodes it at
// the given quality, returning the base64 payload for the request body.
func prepareImage(data []byte, maxWidth, quality int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth {
		scale := float64(maxWidth) / float64(bounds.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, int(float64(bounds.Dy())*scale)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// extractResponseText pulls candidates[0].content.parts[0].text out of the
// response envelope.
func extractResponseText(body []byte) (string, bool) {
	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", false
	}
	candidates, err := root.GetObjectArray("candidates")
	if err != nil || len(candidates) == 0 {
		return "", false
	}
	parts, err := candidates[0].GetObjectArray("content", "parts")
	if err != nil || len(parts) == 0 {
		return "", false
	}
	text, err := parts[0].GetString("text")
	if err != nil {
		return "", false
	}
	return text, true
}

// rawItem mirrors one entry of the model's JSON array output.
type rawItem struct {
	Name     string    `json:"name"`
	Box      []float64 `json:"box"`
	Brand    string    `json:"brand"`
	Color    string    `json:"color"`
	Size     string    `json:"size"`
	Category string    `json:"category"`
}

// stripCodeFences removes a surrounding Markdown code fence, with or
// without a language tag.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// Drop a language tag such as "json" on the fence line
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "[{") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractArraySpan returns the outermost [...] span of the text, or ""
// when no array is present.
func extractArraySpan(text string) string {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// parseItems decodes the JSON array of detection items. A nil slice means
// the text held no parsable array.
func parseItems(text string) []rawItem {
	span := extractArraySpan(stripCodeFences(text))
	if span == "" {
		return nil
	}
	var items []rawItem
	if err := json.Unmarshal([]byte(span), &items); err != nil {
		return nil
	}
	return items
}

// parsePlainNames is the fallback parser for comma-separated plain-text
// responses. Each candidate is filtered by the name validity predicate.
func parsePlainNames(text string) []string {
	text = stripCodeFences(text)
	var names []string
	for _, chunk := range strings.Split(text, ",") {
		name := strings.TrimSpace(strings.Trim(strings.TrimSpace(chunk), ".\"'"))
		if ValidName(name) {
			names = append(names, name)
		}
	}
	return names
}

// DecodeDetections turns raw response text into validated results. Refusal
// responses yield nothing; malformed JSON falls back to the plain-text
// parser. This function never fails.
func DecodeDetections(text string, m *metrics.VisionMetrics) []Result {
	if IsRefusal(text) {
		m.IncrementRefusal()
		return nil
	}

	items := parseItems(text)
	if items == nil {
		names := parsePlainNames(text)
		if len(names) == 0 {
			return nil
		}
		m.IncrementParseFallback()
		results := make([]Result, 0, len(names))
		for _, name := range names {
			results = append(results, Result{Name: name})
		}
		return results
	}

	var results []Result
	for i := range items {
		item := &items[i]
		if !ValidName(item.Name) {
			m.IncrementNameRejected()
			continue
		}
		r := Result{
			Name:     strings.TrimSpace(item.Name),
			Brand:    strings.TrimSpace(item.Brand),
			Color:    strings.TrimSpace(item.Color),
			Size:     strings.TrimSpace(item.Size),
			Category: strings.TrimSpace(item.Category),
		}
		if len(item.Box) == 4 {
			box, err := detection.BoxFromModelScale([4]float64(item.Box))
			if err == nil {
				r.Box = &box
			}
		}
		results = append(results, r)
	}
	return results
}

// DecodeNamedBoxes turns raw backfill response text into named geometry
// results. Items without a usable box are skipped.
func DecodeNamedBoxes(text string, m *metrics.VisionMetrics) []NamedBox {
	if IsRefusal(text) {
		m.IncrementRefusal()
		return nil
	}

	var boxes []NamedBox
	for _, item := range parseItems(text) {
		if !ValidName(item.Name) || len(item.Box) != 4 {
			continue
		}
		box, err := detection.BoxFromModelScale([4]float64(item.Box))
		if err != nil {
			continue
		}
		boxes = append(boxes, NamedBox{Name: strings.TrimSpace(item.Name), Box: box})
	}
	return boxes
}
