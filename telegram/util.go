package telegram

import (
	"github.com/sirupsen/logrus"
)

var logger = GetModuleLogger("telegram")

// GetModuleLogger returns a logrus.Entry scoped to a module.
func GetModuleLogger(name string) logrus.FieldLogger {
	return logrus.WithField("module", name)
}
