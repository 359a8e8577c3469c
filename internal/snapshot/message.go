package snapshot

// Kind tags a pipeline input message.
type Kind int

const (
	KindUnknown Kind = iota
	KindCluster
	KindCategory
	KindCycleStart
	KindCycleEnd
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindCluster:
		return "cluster"
	case KindCategory:
		return "category"
	case KindCycleStart:
		return "cycle-start"
	case KindCycleEnd:
		return "cycle-end"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Message is the tagged union flowing from the poller to the detector.
type Message struct {
	Kind     Kind
	Cluster  string
	Category Category
	Snapshot Snapshot
	// Tag keeps the raw key of messages that could not be classified.
	Tag string
}

func ClusterMessage(name string) Message { return Message{Kind: KindCluster, Cluster: name} }

func CategoryMessage(c Category, s Snapshot) Message {
	return Message{Kind: KindCategory, Category: c, Snapshot: s}
}

func CycleStart() Message { return Message{Kind: KindCycleStart} }
func CycleEnd() Message   { return Message{Kind: KindCycleEnd} }
func Close() Message      { return Message{Kind: KindClose} }
