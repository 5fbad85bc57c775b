package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/style-hub/style-hub/internal/cache"
)

// BaseFields builds the action and config path fields shared by every entry
// point.
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields describes one cache identity.
func CacheFields(action, identity string) logrus.Fields {
	return logrus.Fields{
		"action":   action,
		"identity": identity,
		"key":      cache.Key(identity),
	}
}

// RequestFields are attached to agent API access logs.
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
