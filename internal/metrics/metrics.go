// README: Prometheus collectors shared by the fleet, route, dispatch and http packages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ridesim"

var (
	TripsRequested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trips_requested_total",
		Help:      "Cab requests accepted for processing.",
	})

	// TripOutcomes is labelled completed, no_capacity, route_failed or cancelled.
	TripOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trip_outcomes_total",
		Help:      "Trips by terminal outcome.",
	}, []string{"outcome"})

	ActiveTrips = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_trips",
		Help:      "Trips currently being driven.",
	})

	ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_sessions",
		Help:      "Open client sessions.",
	})

	EventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_sent_total",
		Help:      "Events delivered to client sessions by type.",
	}, []string{"type"})

	RouteCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_cache_lookups_total",
		Help:      "Route cache lookups by result.",
	}, []string{"result"})

	FleetVehicles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fleet_vehicles",
		Help:      "Vehicles by availability after the last tick.",
	}, []string{"state"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
