package enums

// OutboxEventType identifies the domain event stored in outbox_events.
type OutboxEventType string

const (
	OutboxEventContainerRejected   OutboxEventType = "container.rejected"
	OutboxEventContainerShelved    OutboxEventType = "container.shelved"
	OutboxEventContainerDispatched OutboxEventType = "container.dispatched"
	OutboxEventPickTaskCompleted   OutboxEventType = "pick_task.completed"
	OutboxEventPickTaskCanceled    OutboxEventType = "pick_task.canceled"
)

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateContainer OutboxAggregateType = "container"
	OutboxAggregatePickTask  OutboxAggregateType = "pick_task"
)

// OutboxDLQErrorReason classifies why a row was parked in the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
