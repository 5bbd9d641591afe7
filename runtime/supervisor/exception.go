package supervisor

type (
	// ExceptionStatus is the structured delivery status of an exception
	// event.
	ExceptionStatus struct {
		// Status is the carrier-reported status, for example "Customer Not
		// Home" or "Package Damaged".
		Status string `json:"status"`
		// Reason is optional free text qualifying the status.
		Reason string `json:"reason,omitempty"`
	}

	// Exception is an inbound delivery exception event requiring resolution.
	Exception struct {
		// DeliveryID identifies the affected delivery. Required.
		DeliveryID string `json:"deliveryId"`
		// ContextID groups all tasks created while resolving this exception.
		// Defaults to a random UUID when empty.
		ContextID string `json:"contextId,omitempty"`
		// Status is the structured exception status. Required.
		Status ExceptionStatus `json:"status"`
		// OrderValue is the monetary value of the affected order, when known.
		OrderValue float64 `json:"orderValue,omitempty"`
		// DriverNotes is optional free text captured from the driver.
		DriverNotes string `json:"driverNotes,omitempty"`
	}

	// DelegationOutcome records one invoke-agent call and its terminal
	// result.
	DelegationOutcome struct {
		// Agent is the specialist the task was delegated to.
		Agent string `json:"agent"`
		// TaskID identifies the delegated task, when one was created.
		TaskID string `json:"taskId,omitempty"`
		// Status is the task's terminal status, or "failed" for transport
		// failures.
		Status string `json:"status"`
		// Result is the task's final result text or the failure description.
		Result string `json:"result,omitempty"`
	}

	// ResolutionSummary is the supervisor's terminal output for one
	// exception.
	ResolutionSummary struct {
		// Classification is the policy class assigned to the exception.
		Classification string `json:"classification"`
		// AgentsInvoked lists the specialists invoked, in dispatch order.
		AgentsInvoked []string `json:"agentsInvoked"`
		// ActionsCompleted describes the delegations that completed
		// successfully, in dispatch order.
		ActionsCompleted []string `json:"actionsCompleted"`
		// Status is "resolved", "pending", or "requires_follow_up".
		Status string `json:"status"`
		// CustomerImpact is the customer-facing description of the outcome.
		CustomerImpact string `json:"customerImpact"`
		// Outcomes carries the per-delegation detail backing the summary.
		Outcomes []DelegationOutcome `json:"outcomes,omitempty"`
	}
)

// Resolution summary statuses.
const (
	StatusResolved         = "resolved"
	StatusPending          = "pending"
	StatusRequiresFollowUp = "requires_follow_up"
)
