// Package logging wires the core's structured logging on top of logrus,
// in the idiom of leftmike-maho's cmd.mahoPreRun: a package-level base
// logger configured once by the CLI, with per-component entries handed
// out to callers.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{
		DisableLevelTruncation: true,
		FullTimestamp:          true,
	})
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
}

// SetLevel parses and applies a level name ("trace", "debug", "info",
// "warn", "error"), mirroring maho's --log-level flag handling.
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	base.SetLevel(lvl)
	return nil
}

// For component returns a logger entry tagged with the calling
// component's name, e.g. logging.For("buffer_pool").
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
