package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"shorts-sync/internal/models"
	"shorts-sync/internal/segment"
)

func scriptPrompts(brief models.Brief) (system, user string) {
	mainEnd := brief.DurationSeconds - 10
	if mainEnd < 10 {
		mainEnd = 10
	}
	system = fmt.Sprintf(`You are an expert short-form video scriptwriter specializing in %s content.
Create engaging scripts optimized for %d-second vertical videos.

Style: %s
Brand Voice: %s

REQUIREMENTS:
1. Hook (first 3 seconds): attention-grabbing question or statement
2. Value proposition (3-10s): why the viewer should keep watching
3. Main content (10-%ds): core message with actionable insights
4. Call to action (last 10 seconds)

TIMESTAMP REQUIREMENTS:
- Break the narration into consecutive segments with start and end times in seconds
- Each segment should be 8-12 seconds, one video clip is rendered per segment
- Each segment needs its own visual description of what is on screen while that text is spoken
- Never reuse the same visual description for two segments

Respond with JSON only:
{
  "full_script": "the complete narration",
  "segments": [{"start": 0, "end": 10, "text": "...", "visual": "...", "word_count": 0}]
}`, brief.Niche, brief.DurationSeconds, brief.Style, brief.BrandVoice, mainEnd)

	user = fmt.Sprintf("Create a %d-second %s short video script about: %s\n\nTarget audience: %s enthusiasts\nPlatforms: YouTube Shorts, TikTok, Instagram Reels",
		brief.DurationSeconds, brief.Style, brief.Topic, brief.Niche)
	return system, user
}

// decodeScript extracts the script JSON from a model reply, tolerating
// markdown fences and text around the object.
func decodeScript(raw string) (*segment.Script, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var script segment.Script
	if err := json.Unmarshal([]byte(raw), &script); err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, &models.MalformedScriptError{Entry: -1, Reason: "reply is not JSON"}
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &script); err != nil {
			return nil, &models.MalformedScriptError{Entry: -1, Reason: "reply is not JSON: " + err.Error()}
		}
	}
	return &script, nil
}
