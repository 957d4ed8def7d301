package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the OAuth and webhook surfaces.
type Metrics struct {
	InstallRedirects  prometheus.Counter
	CallbackResults   *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InstallRedirects: factory.NewCounter(prometheus.CounterOpts{
			Name: "shoplink_oauth_install_redirects_total",
			Help: "Install redirects issued to the authorization endpoint.",
		}),
		CallbackResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoplink_oauth_callbacks_total",
			Help: "OAuth callbacks by result.",
		}, []string{"result"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoplink_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by topic and result.",
		}, []string{"topic", "result"}),
	}
}

// NewDefault registers on the default Prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
