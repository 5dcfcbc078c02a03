package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	root *logrus.Logger
)

// Init configures the root logger. The first call wins.
func Init(level string) {
	once.Do(func() {
		root = logrus.New()
		root.SetOutput(os.Stderr)
		root.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		root.SetLevel(lvl)
	})
}

// Component returns a logger entry tagged with the component name.
func Component(name string) *logrus.Entry {
	if root == nil {
		Init("info")
	}
	return root.WithField("component", name)
}
