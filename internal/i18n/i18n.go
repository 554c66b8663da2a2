package i18n

import (
	"embed"
	"encoding/json"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

func NewLocalizer(defaultLang string) *i18n.Localizer {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, file := range []string{"locales/en.json", "locales/id.json"} {
		if _, err := bundle.LoadMessageFileFS(locales, file); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("Could not load message file")
		}
	}

	langTag := language.English
	if defaultLang == "id" {
		langTag = language.Indonesian
	}

	return i18n.NewLocalizer(bundle, langTag.String())
}

// Text localizes messageID, falling back to the id itself when it is unknown.
func Text(l *i18n.Localizer, messageID string, data map[string]any) string {
	text, err := l.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		log.Debug().Err(err).Str("message_id", messageID).Msg("Missing translation")
		return messageID
	}
	return text
}
