package logging

import (
	"fmt"

	nested "github.com/Lyrics-you/sail-logrus-formatter/sailor"
	log "github.com/sirupsen/logrus"
)

// Setup installs the nested formatter on the standard logrus logger and sets
// its level.
func Setup(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	log.SetLevel(lvl)
	log.SetFormatter(&nested.Formatter{
		TimeStampFormat: "2006-01-02 15:04:05",
		Position:        true,
		Colors:          true,
		FieldsColors:    true,
		FieldsSpace:     true,
		LowerCaseLevel:  true,
		TrimMessages:    true,
	})
	return nil
}
