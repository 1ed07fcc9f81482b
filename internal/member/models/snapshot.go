package models

// Snapshot is one full-collection read delivered by a subscription. A snapshot
// carrying Err is the last one: the subscription closes after delivering it and
// the caller subscribes again to resume.
type Snapshot struct {
	Members []*Member
	Err     error
}
