package utils

import (
	"os"

	"github.com/DataDog/datadog-go/statsd"

	Logger "github.com/postmux/postmux/utils/log"
)

// Metrics is a thin statsd wrapper. A nil receiver or missing agent address
// turns every call into a no-op so components never need to guard their
// counter bumps.
type Metrics struct {
	client *statsd.Client
}

// NewMetricsFromEnv connects to the statsd agent at STATSD_ADDR, or returns
// a no-op Metrics when unset.
func NewMetricsFromEnv() *Metrics {
	addr := os.Getenv("STATSD_ADDR")
	if addr == "" {
		return &Metrics{}
	}
	client, err := statsd.New(addr)
	if err != nil {
		Logger.Log.Errorln("fail to connect to statsd agent: ", err)
		return &Metrics{}
	}
	return &Metrics{client: client}
}

func (m *Metrics) Incr(name string, tags []string) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Incr(name, tags, 1); err != nil {
		Logger.Log.Infoln("cannot report counter ", name)
	}
}

func (m *Metrics) Count(name string, value int64, tags []string) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Count(name, value, tags, 1); err != nil {
		Logger.Log.Infoln("cannot report counter ", name)
	}
}
