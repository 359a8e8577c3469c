package snapshot

// Category is a watched resource kind. The string value is the wire key
// carried by inbound messages.
type Category string

const (
	Nodes        Category = "nodelist"
	Pods         Category = "pods"
	StatefulSets Category = "stateful_sets"
	ReplicaSets  Category = "replicaset_sets"
	DaemonSets   Category = "daemon_sets"
	Deployments  Category = "deployment"
	PVCs         Category = "pvc"
	PVs          Category = "pv"
)

// IdentityField is the only field shown for resolved entities.
const IdentityField = "namespace"

type categoryInfo struct {
	title  string
	fields []string
}

var categories = map[Category]categoryInfo{
	Nodes: {
		title:  "Node",
		fields: []string{"context", "name", "role", "version", "conditions"},
	},
	Pods: {
		title: "Pod",
		fields: []string{"cluster", "namespace", "phase", "started", "own_controller", "own_kind", "own_name",
			"conditions", "cs_0", "cs_1", "cs_2", "cs_3"},
	},
	StatefulSets: {
		title:  "Stateful sets",
		fields: []string{"cluster", "namespace", "available_replicas", "replicas"},
	},
	ReplicaSets: {
		title:  "Replica sets",
		fields: []string{"cluster", "namespace", "available_replicas", "replicas"},
	},
	DaemonSets: {
		title: "Daemon sets",
		fields: []string{"cluster", "namespace", "current_number_scheduled", "desired_number_scheduled",
			"number_available", "number_ready"},
	},
	Deployments: {
		title:  "Deployment",
		fields: []string{"cluster", "namespace", "available_replicas", "replicas"},
	},
	PVCs: {
		title:  "PVC",
		fields: []string{"cluster", "namespace", "phase", "storage_class_name"},
	},
	PVs: {
		title:  "PV",
		fields: []string{"cluster", "namespace", "phase", "storage_class_name", "claim_ref_namespace"},
	},
}

// Order is the fixed emission order of a poll cycle.
var Order = []Category{Nodes, Pods, Deployments, StatefulSets, ReplicaSets, DaemonSets, PVCs, PVs}

// ParseCategory maps a wire key to a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	_, ok := categories[c]
	return c, ok
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Title is the human heading used in reports.
func (c Category) Title() string {
	if info, ok := categories[c]; ok {
		return info.title
	}
	return string(c)
}

// Fields is the allow-list of rendered fields.
func (c Category) Fields() []string {
	return append([]string(nil), categories[c].fields...)
}
