package metrics

// CapReserved records a successful reservation.
func CapReserved(counter string) {
	CapReservationsTotal.WithLabelValues(counter, "reserved").Inc()
}

// CapRejected records a reservation refused by a plan cap.
func CapRejected(counter string) {
	CapReservationsTotal.WithLabelValues(counter, "rejected").Inc()
}

// CapErrored records a reservation that failed for any other reason.
func CapErrored(counter string) {
	CapReservationsTotal.WithLabelValues(counter, "error").Inc()
}

// StorageConflictRetried records one repeated transaction.
func StorageConflictRetried(op string) {
	StorageConflictRetriesTotal.WithLabelValues(op).Inc()
}

// LeadRouted records a routing outcome.
func LeadRouted(policy, outcome string) {
	LeadsRoutedTotal.WithLabelValues(policy, outcome).Inc()
}

// UnknownRole records a role that fell back to the free flags.
func UnknownRole() {
	UnknownRolesTotal.Inc()
}

// NotificationSent records a delivered notification.
func NotificationSent(channel string) {
	NotificationsTotal.WithLabelValues(channel, "sent").Inc()
}

// NotificationFailed records a failed notification.
func NotificationFailed(channel string) {
	NotificationsTotal.WithLabelValues(channel, "failed").Inc()
}
