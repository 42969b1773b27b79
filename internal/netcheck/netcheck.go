package netcheck

import (
	"context"
	"time"

	mdsconfig "github.com/NikitaDmitryuk/media-download-server/internal/config"
	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
	"github.com/go-resty/resty/v2"
)

const probeTimeout = 5 * time.Second

// Checker probes well-known endpoints before a download attempt starts, so
// a dead network surfaces as a retryable precondition instead of a
// mid-attempt tool failure.
type Checker struct {
	client    *resty.Client
	probeURLs []string
	enabled   bool
}

func NewChecker(config *mdsconfig.Config) *Checker {
	client := resty.New().SetTimeout(probeTimeout)
	return &Checker{
		client:    client,
		probeURLs: config.Netcheck.ProbeURLs,
		enabled:   config.Netcheck.Enabled,
	}
}

// HasConnectivity reports whether any probe endpoint answered. Any HTTP
// response counts, error statuses included; only transport failures mean
// the network path is down. A disabled checker always reports true.
func (c *Checker) HasConnectivity(ctx context.Context) bool {
	if !c.enabled {
		return true
	}

	for _, probe := range c.probeURLs {
		resp, err := c.client.R().SetContext(ctx).Head(probe)
		if err != nil {
			logutils.Log.WithError(err).WithField("probe", probe).Debug("Connectivity probe failed")
			continue
		}
		logutils.Log.WithFields(map[string]any{
			"probe":  probe,
			"status": resp.StatusCode(),
		}).Debug("Connectivity probe answered")
		return true
	}

	logutils.Log.Warn("No connectivity: all probe endpoints unreachable")
	return false
}
