package di

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"talking-pet/companion/pkg/health"
	"talking-pet/companion/pkg/resilience"
)

const healthPeriod = 15 * time.Second

func (c *Container) registerHealthChecks(client *http.Client) {
	c.Health.RegisterAPICheck("gateway", c.Config.Gateway.URL+"/api/shop", client, true)

	c.Health.RegisterCheck("speech", false, func() (health.Status, string, error) {
		switch state := c.Breaker.State(); state {
		case resilience.StateOpen:
			return health.StatusDegraded, "speech synthesis short-circuited", nil
		default:
			return health.StatusUp, "breaker " + string(state), nil
		}
	})

	c.Health.RegisterCheck("reminders", false, func() (health.Status, string, error) {
		if c.Store.RemindersRunning() {
			return health.StatusUp, "reminder loop running", nil
		}
		return health.StatusUp, "reminder loop stopped", nil
	})
}

func rateLimit(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}
