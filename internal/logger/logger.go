package logger

import (
	"github.com/sirupsen/logrus"
)

// Log общий логгер процесса. Сервисы получают его явно как logrus.FieldLogger,
// напрямую его читают только cmd/server и middleware.
var Log = logrus.New()

// Init настраивает уровень и формат: JSON для production, текст для development.
// Стандартный логгер logrus настраивается так же, им пишут фоновые горутины.
func Init(level string, production bool) *logrus.Logger {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if !production {
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	for _, l := range []*logrus.Logger{Log, logrus.StandardLogger()} {
		l.SetLevel(lvl)
		l.SetFormatter(formatter)
	}
	return Log
}

// Component логгер с полем component для отдельной подсистемы.
func Component(name string) logrus.FieldLogger {
	return Log.WithField("component", name)
}
