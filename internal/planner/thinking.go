package planner

import (
	"regexp"
	"strings"

	"github.com/agentoven/concierge/pkg/models"
	"github.com/rs/zerolog/log"
)

var placeholderRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

var thinkingTemplates = map[models.ThinkingCheckpoint]string{
	models.CheckpointTurnStarted:             "Looking at your request...",
	models.CheckpointIntentResolved:          "Got it, planning {{experience}}.",
	models.CheckpointBeforeWeather:           "Checking the weather in {{location}}...",
	models.CheckpointAfterWeather:            "Weather in {{location}}: {{weather}}.",
	models.CheckpointWeatherPivot:            "Rain is on the way, so I'm switching to {{categories}}.",
	models.CheckpointBeforeDiscoverProducts:  "Searching for {{query}}...",
	models.CheckpointBeforeDiscoverComposite: "Putting together {{experience}}...",
	models.CheckpointBeforeCategoryFetch:     "Finding {{category}} ({{index}} of {{total}})...",
	models.CheckpointAfterDiscover:           "Found {{count}} options.",
	models.CheckpointBeforeBundle:            "Building your bundle options...",
	models.CheckpointBeforeResponse:          "Wrapping up...",
}

// Render fills the checkpoint's template with vars. Placeholders without a
// value are dropped. Unknown checkpoints render as "".
func Render(cp models.ThinkingCheckpoint, vars map[string]string) string {
	tmpl, ok := thinkingTemplates[cp]
	if !ok {
		return ""
	}
	out := placeholderRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		return vars[placeholderRegex.FindStringSubmatch(m)[1]]
	})
	return strings.Join(strings.Fields(out), " ")
}

// Thinker adapts a user ThinkingFunc into the CheckpointFunc components emit
// to. A nil fn yields a nil CheckpointFunc. A panic inside fn is logged and
// dropped; it never reaches the loop.
func Thinker(fn models.ThinkingFunc) models.CheckpointFunc {
	if fn == nil {
		return nil
	}
	return func(cp models.ThinkingCheckpoint, vars map[string]string) {
		msg := Render(cp, vars)
		if msg == "" {
			return
		}
		ctx := make(map[string]string, len(vars)+1)
		for k, v := range vars {
			ctx[k] = v
		}
		ctx["checkpoint"] = string(cp)
		defer func() {
			if r := recover(); r != nil {
				log.Warn().
					Str("checkpoint", string(cp)).
					Interface("panic", r).
					Msg("Thinking callback panicked, ignoring")
			}
		}()
		fn(msg, ctx)
	}
}
