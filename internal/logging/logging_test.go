package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", logrus.WarnLevel, &buf)

	logger.WithFields(logrus.Fields{"path": "/api/topic/1"}).Debug("Request completed quickly")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected a JSON line but got %q: %v", buf.String(), err)
	}
	if entry["path"] != "/api/topic/1" || entry["level"] != "debug" {
		t.Errorf("Expected path and level fields but got %v", entry)
	}
}

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	logger := New("chatty", logrus.WarnLevel, &bytes.Buffer{})
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected warn level but got %v", logger.GetLevel())
	}
}

func TestShipToLogstashFailsOnUnreachableAddr(t *testing.T) {
	logger := New("info", logrus.InfoLevel, &bytes.Buffer{})
	if _, err := ShipToLogstash(logger, "127.0.0.1:1", "forum"); err == nil {
		t.Errorf("Expected a dial error")
	}
}
