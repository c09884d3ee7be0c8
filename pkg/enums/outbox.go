package enums

// OutboxEventType identifies domain events emitted through the outbox.
type OutboxEventType string

const (
	EventJournalEntryPosted   OutboxEventType = "journal.entry_posted"
	EventJournalEntryReversed OutboxEventType = "journal.entry_reversed"
)

// IsValid reports whether the value is a known outbox event type.
func (t OutboxEventType) IsValid() bool {
	return t == EventJournalEntryPosted || t == EventJournalEntryReversed
}

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateJournalEntry OutboxAggregateType = "journal_entry"
)
