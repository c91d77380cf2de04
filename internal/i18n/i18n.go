package i18n

import (
	"strings"
	"sync"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/ngmod/resources"
)

const (
	DefaultLanguage  = "en"
	translationsPath = "i18n/translations.yml"
)

var state = struct {
	once sync.Once
	// key -> upper-case locale -> text
	translations map[string]map[string]string
}{}

func load() {
	state.translations = map[string]map[string]string{}
	content, err := resources.FS.ReadFile(translationsPath)
	if err != nil {
		log.WithError(err).Errorln("cant load i18n")
		return
	}
	if err := yaml.Unmarshal(content, &state.translations); err != nil {
		log.WithError(err).Errorln("cant unmarshal i18n")
	}
}

// Get returns the translation of key, falling back to the key itself, which is the English text.
func Get(key, lang string) string {
	if lang == DefaultLanguage || lang == "" {
		return key
	}
	state.once.Do(load)
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok && res != "" {
		return res
	}
	log.Tracef(`no translation for key "%s"`, key)
	return key
}

// HasLanguage reports whether replies can be rendered in lang.
func HasLanguage(lang string) bool {
	return tool.In(strings.ToLower(lang), Languages()...)
}
