package config

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds a logger writing to w at the configured level and format.
func (c *Config) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)

	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log.format %q", c.Log.Format)
	}
	return l, nil
}
