package logging

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/sirupsen/logrus"
)

// New builds a JSON logger writing to out (stdout when nil). An unknown
// level falls back to fallback.
func New(level string, fallback logrus.Level, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = fallback
	}
	logger.SetLevel(lvl)
	return logger
}

// ShipToLogstash adds a hook sending every entry to a logstash TCP input.
// The returned closer releases the connection.
func ShipToLogstash(logger *logrus.Logger, addr, app string) (io.Closer, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial logstash %s: %w", addr, err)
	}
	hook := logrustash.New(conn, logrustash.DefaultFormatter(logrus.Fields{"type": app}))
	logger.AddHook(hook)
	logger.WithField("addr", addr).Info("Shipping logs to logstash")
	return conn, nil
}
