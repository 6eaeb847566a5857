package internal

import "expvar"

var (
	requestsTotal  = expvar.NewMap("mirrorhooks_requests_total")
	rejectedTotal  = expvar.NewMap("mirrorhooks_rejected_total")
	ignoredTotal   = expvar.NewMap("mirrorhooks_ignored_total")
	enqueuedTotal  = expvar.NewMap("mirrorhooks_enqueued_total")
	publishErrors  = expvar.NewMap("mirrorhooks_publish_errors_total")
	syncsTotal     = expvar.NewMap("mirrorhooks_syncs_total")
	syncErrors     = expvar.NewMap("mirrorhooks_sync_errors_total")
	notifierErrors = expvar.NewMap("mirrorhooks_notifier_errors_total")
)

func IncRequest(provider string) {
	requestsTotal.Add(provider, 1)
}

func IncRejected(provider string) {
	rejectedTotal.Add(provider, 1)
}

func IncIgnored(reason string) {
	ignoredTotal.Add(reason, 1)
}

func IncEnqueued(eventClass string) {
	enqueuedTotal.Add(eventClass, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

// IncSync counts a clone or fetch by operation name.
func IncSync(operation string) {
	syncsTotal.Add(operation, 1)
}

func IncSyncError(domain string) {
	syncErrors.Add(domain, 1)
}

func IncNotifierError(domain string) {
	notifierErrors.Add(domain, 1)
}
