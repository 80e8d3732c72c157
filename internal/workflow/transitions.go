package workflow

// The legal edges for each entity kind. A transition to the current status
// is handled before these run: it is a no-op success, never an error, and
// never repeats side effects.

func ensureReportTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "verified" || newStatus == "rejected" {
			return nil
		}
	case "verified":
		if newStatus == "worker_completed" {
			return nil
		}
	}
	return validationf("invalid report status transition %s -> %s", oldStatus, newStatus)
}

func ensureJobTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "verified" || newStatus == "rejected" {
			return nil
		}
	case "verified":
		if newStatus == "assigned" {
			return nil
		}
	case "assigned":
		// Workers may complete directly; the start step is optional.
		if newStatus == "in_progress" || newStatus == "completed" {
			return nil
		}
	case "in_progress":
		if newStatus == "completed" {
			return nil
		}
	}
	return validationf("invalid job status transition %s -> %s", oldStatus, newStatus)
}

func ensureItemTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "pending":
		if newStatus == "approved" || newStatus == "rejected" {
			return nil
		}
	case "approved":
		if newStatus == "sold" {
			return nil
		}
	}
	return validationf("invalid marketplace item status transition %s -> %s", oldStatus, newStatus)
}

func ensureApplicationTransition(oldStatus, newStatus string) error {
	if oldStatus == "pending" && (newStatus == "verified" || newStatus == "rejected") {
		return nil
	}
	return validationf("invalid application status transition %s -> %s", oldStatus, newStatus)
}

// Events may move backwards: an organiser can reopen a completed drive or
// push an ongoing one back to upcoming.
func ensureEventTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "upcoming":
		if newStatus == "ongoing" {
			return nil
		}
	case "ongoing":
		if newStatus == "completed" || newStatus == "upcoming" {
			return nil
		}
	case "completed":
		if newStatus == "ongoing" {
			return nil
		}
	}
	return validationf("invalid event status transition %s -> %s", oldStatus, newStatus)
}
