package vision

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDetections(t *testing.T) {
	t.Run("fenced JSON array", func(t *testing.T) {
		text := "```json\n[{\"name\":\"Red Mug\",\"box\":[10,10,200,200]}]\n```"
		results := DecodeDetections(text, nil)

		require.Len(t, results, 1)
		assert.Equal(t, "Red Mug", results[0].Name)
		require.NotNil(t, results[0].Box)
		assert.InDelta(t, 0.01, results[0].Box.YMin, 1e-9)
		assert.InDelta(t, 0.01, results[0].Box.XMin, 1e-9)
		assert.InDelta(t, 0.2, results[0].Box.YMax, 1e-9)
		assert.InDelta(t, 0.2, results[0].Box.XMax, 1e-9)
	})

	t.Run("refusal yields zero detections", func(t *testing.T) {
		results := DecodeDetections("I cannot identify any items in this image.", nil)
		assert.Empty(t, results)
	})

	t.Run("array embedded in prose", func(t *testing.T) {
		text := `Here are the items: [{"name":"Desk Lamp"},{"name":"Stapler"}] hope that helps`
		results := DecodeDetections(text, nil)
		require.Len(t, results, 2)
		assert.Equal(t, "Desk Lamp", results[0].Name)
		assert.Equal(t, "Stapler", results[1].Name)
	})

	t.Run("plain-text comma fallback", func(t *testing.T) {
		results := DecodeDetections("Red Mug, Desk Lamp, Office Chair", nil)
		require.Len(t, results, 3)
		assert.Equal(t, "Desk Lamp", results[1].Name)
		assert.Nil(t, results[1].Box, "fallback names carry no geometry")
	})

	t.Run("invalid names filtered from JSON items", func(t *testing.T) {
		text := `[{"name":""},{"name":"a b c d e f g h"},{"name":"Mug"}]`
		results := DecodeDetections(text, nil)
		require.Len(t, results, 1)
		assert.Equal(t, "Mug", results[0].Name)
	})

	t.Run("inverted box dropped but name kept", func(t *testing.T) {
		text := `[{"name":"Mug","box":[500,500,100,600]}]`
		results := DecodeDetections(text, nil)
		require.Len(t, results, 1)
		assert.Nil(t, results[0].Box)
	})

	t.Run("optional descriptive fields", func(t *testing.T) {
		text := `[{"name":"Office Chair","brand":"Herman Miller","color":"black"}]`
		results := DecodeDetections(text, nil)
		require.Len(t, results, 1)
		assert.Equal(t, "Herman Miller", results[0].Brand)
		assert.Equal(t, "black", results[0].Color)
	})

	t.Run("garbage text yields nothing", func(t *testing.T) {
		assert.Empty(t, DecodeDetections("{{{{", nil))
		assert.Empty(t, DecodeDetections("", nil))
	})
}

func TestDecodeNamedBoxes(t *testing.T) {
	t.Run("groups well-formed boxes", func(t *testing.T) {
		text := `[{"name":"Mug","box":[0,0,500,500]},{"name":"Lamp","box":[500,500,1000,1000]}]`
		boxes := DecodeNamedBoxes(text, nil)
		require.Len(t, boxes, 2)
		assert.Equal(t, "Mug", boxes[0].Name)
		assert.InDelta(t, 0.5, boxes[0].Box.YMax, 1e-9)
	})

	t.Run("skips items without boxes", func(t *testing.T) {
		text := `[{"name":"Mug"},{"name":"Lamp","box":[0,0,100,100]}]`
		boxes := DecodeNamedBoxes(text, nil)
		require.Len(t, boxes, 1)
		assert.Equal(t, "Lamp", boxes[0].Name)
	})

	t.Run("refusal yields nothing", func(t *testing.T) {
		assert.Empty(t, DecodeNamedBoxes("I'm sorry, I am unable to help with that.", nil))
	})
}

func TestValidName(t *testing.T) {
	valid := []string{"Mug", "Red Office Chair", "65″ TV"}
	for _, name := range valid {
		assert.True(t, ValidName(name), "expected %q to be valid", name)
	}

	invalid := []string{
		"",
		"   ",
		"one two three four five six seven eight",
		"this name is way way way way way way way way way too long to be an object",
		`{"name": "Mug"}`,
		"name[0]",
		"parse error near line 3",
		"I cannot see any objects",
	}
	for _, name := range invalid {
		assert.False(t, ValidName(name), "expected %q to be rejected", name)
	}
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, IsRefusal("I cannot identify any items in this image."))
	assert.True(t, IsRefusal("I'M SORRY, but the provided image is blank."))
	assert.False(t, IsRefusal(`[{"name":"Mug"}]`))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, stripCodeFences("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, stripCodeFences("```\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, stripCodeFences(`[{"a":1}]`))
}

func TestBuildRequestBody(t *testing.T) {
	body, err := buildRequestBody("find things", "aGVsbG8=", 400)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	contents := decoded["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "find things", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mime_type"])

	gen := decoded["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.2, gen["temperature"].(float64), 1e-9)
	assert.InDelta(t, 20, gen["topK"].(float64), 1e-9)
	assert.InDelta(t, 0.8, gen["topP"].(float64), 1e-9)
	assert.InDelta(t, 400, gen["maxOutputTokens"].(float64), 1e-9)
}

func TestPrepareImage(t *testing.T) {
	// A 100x40 gradient as the source frame
	src := image.NewRGBA(image.Rect(0, 0, 100, 40))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	t.Run("downscales wide images", func(t *testing.T) {
		b64, err := prepareImage(buf.Bytes(), 50, 70)
		require.NoError(t, err)
		assert.NotEmpty(t, b64)
	})

	t.Run("rejects non-image payloads", func(t *testing.T) {
		_, err := prepareImage([]byte("not a jpeg"), 640, 70)
		assert.Error(t, err)
	})
}

func TestExtractResponseText(t *testing.T) {
	body := []byte(`{"candidates":[{"content":{"parts":[{"text":"[{\"name\":\"Mug\"}]"}]}}]}`)
	text, ok := extractResponseText(body)
	require.True(t, ok)
	assert.Contains(t, text, "Mug")

	_, ok = extractResponseText([]byte(`{"candidates":[]}`))
	assert.False(t, ok)

	_, ok = extractResponseText([]byte(`not json`))
	assert.False(t, ok)
}
