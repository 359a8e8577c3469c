// Package kube collects problem entities from a Kubernetes API server.
//
// Every fetch lists one resource kind across all namespaces and keeps only
// the entities in a problem state: nodes that are not ready or under
// pressure, pods outside the Running phase, workloads short of replicas
// and volumes or claims that are not Bound.
package kube

import (
	"context"
	"fmt"
	"strings"
	"sync"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"k8swatchdog/internal/collector"
	"k8swatchdog/internal/snapshot"
	logx "k8swatchdog/pkg/logx"
)

const (
	rootCAConfigMap  = "kube-root-ca.crt"
	clusterNameKey   = "cluster-name"
	roleLabel        = "kubernetes.io/role"
	defaultNodeRole  = "control-plane"
	maxContainerRows = 4
)

type Options struct {
	// ForcedName overrides cluster name discovery.
	ForcedName string
	// ContextCluster is the kubeconfig cluster, tried after ForcedName.
	ContextCluster string
	// ScaledToZero marks categories that also report zero-replica
	// workloads (zero ready for daemon sets).
	ScaledToZero map[snapshot.Category]bool
}

type Collector struct {
	cs   kubernetes.Interface
	opts Options
	log  logx.Logger

	mu     sync.Mutex
	cached string
}

var _ collector.Collector = (*Collector)(nil)

func New(cs kubernetes.Interface, opts Options, log logx.Logger) *Collector {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Collector{cs: cs, opts: opts, log: log}
}

// ClusterName resolves the label in order: forced name, kubeconfig
// context cluster, the cluster-name key of kube-system/kube-root-ca.crt.
// It falls back to "Unknown" and only returns an error alongside it.
func (c *Collector) ClusterName(ctx context.Context) (string, error) {
	if n := strings.TrimSpace(c.opts.ForcedName); n != "" {
		return n, nil
	}
	if n := strings.TrimSpace(c.opts.ContextCluster); n != "" {
		return n, nil
	}
	cm, err := c.cs.CoreV1().ConfigMaps(metav1.NamespaceSystem).Get(ctx, rootCAConfigMap, metav1.GetOptions{})
	if err != nil {
		return collector.UnknownCluster, fmt.Errorf("read %s/%s: %w", metav1.NamespaceSystem, rootCAConfigMap, err)
	}
	if n := strings.TrimSpace(cm.Data[clusterNameKey]); n != "" {
		return n, nil
	}
	return collector.UnknownCluster, nil
}

func (c *Collector) Fetch(ctx context.Context, cat snapshot.Category) (snapshot.Snapshot, error) {
	var (
		snap snapshot.Snapshot
		err  error
	)
	switch cat {
	case snapshot.Nodes:
		snap, err = c.nodes(ctx)
	case snapshot.Pods:
		snap, err = c.pods(ctx)
	case snapshot.Deployments:
		snap, err = c.deployments(ctx)
	case snapshot.StatefulSets:
		snap, err = c.statefulSets(ctx)
	case snapshot.ReplicaSets:
		snap, err = c.replicaSets(ctx)
	case snapshot.DaemonSets:
		snap, err = c.daemonSets(ctx)
	case snapshot.PVCs:
		snap, err = c.pvcs(ctx)
	case snapshot.PVs:
		snap, err = c.pvs(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", collector.ErrUnsupported, string(cat))
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", cat, err)
	}
	c.log.Debug("fetched", logx.String("category", string(cat)), logx.Int("problems", len(snap)))
	return snap, nil
}

// cluster is the entity label; a resolved name is cached, a fallback is
// retried on the next fetch.
func (c *Collector) cluster(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != "" {
		return c.cached
	}
	n, err := c.ClusterName(ctx)
	if err == nil && n != collector.UnknownCluster {
		c.cached = n
	}
	return n
}

func (c *Collector) nodes(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := snapshot.Snapshot{}
	for i := range list.Items {
		n := &list.Items[i]
		if !nodeHasProblem(n) {
			continue
		}
		role := n.Labels[roleLabel]
		if role == "" {
			role = defaultNodeRole
		}
		conds := snapshot.NewAttributes()
		for _, cond := range n.Status.Conditions {
			conds.Set(string(cond.Type), string(cond.Status))
		}
		out[n.Name] = snapshot.NewAttributes().
			Set("context", c.opts.ContextCluster).
			Set("name", n.Name).
			Set("role", role).
			Set("version", n.Status.NodeInfo.KubeletVersion).
			Set("conditions", conds)
	}
	return out, nil
}

// nodeHasProblem: Ready is not True, or any other condition is True.
func nodeHasProblem(n *corev1.Node) bool {
	ready := false
	for _, cond := range n.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			ready = cond.Status == corev1.ConditionTrue
			continue
		}
		if cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return !ready
}

func (c *Collector) pods(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster := c.cluster(ctx)
	out := snapshot.Snapshot{}
	for i := range list.Items {
		p := &list.Items[i]
		if p.Status.Phase == corev1.PodRunning {
			continue
		}
		a := snapshot.NewAttributes().
			Set("cluster", cluster).
			Set("namespace", p.Namespace).
			Set("phase", string(p.Status.Phase))
		if p.Status.StartTime != nil {
			a.Set("started", p.Status.StartTime.UTC().Format("2006-01-02T15:04:05Z"))
		}
		if len(p.Status.Conditions) > 0 {
			conds := snapshot.NewAttributes()
			for _, cond := range p.Status.Conditions {
				conds.Set(string(cond.Type), string(cond.Status))
			}
			a.Set("conditions", conds)
		}
		for j, cs := range p.Status.ContainerStatuses {
			if j >= maxContainerRows {
				break
			}
			a.Set(fmt.Sprintf("cs_%d", j), containerAttrs(cs))
		}
		if len(p.OwnerReferences) > 0 {
			own := p.OwnerReferences[0]
			a.Set("own_controller", own.Controller).
				Set("own_kind", own.Kind).
				Set("own_name", own.Name)
		}
		out[objectKey(p.Namespace, p.Name)] = a
	}
	return out, nil
}

// objectKey names a namespaced object so equal names in different
// namespaces stay distinct entities.
func objectKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

func containerAttrs(cs corev1.ContainerStatus) *snapshot.Attributes {
	a := snapshot.NewAttributes().
		Set("name", cs.Name).
		Set("ready", cs.Ready).
		Set("restart_count", cs.RestartCount).
		Set("started", cs.Started)
	switch st := cs.State; {
	case st.Waiting != nil:
		a.Set("state", "waiting").Set("reason", st.Waiting.Reason)
	case st.Terminated != nil:
		a.Set("state", "terminated").Set("reason", st.Terminated.Reason).Set("exit_code", st.Terminated.ExitCode)
	case st.Running != nil:
		a.Set("state", "running")
	}
	return a
}

// replicaProblem: available differs from desired, or, when scaled-to-zero
// workloads are wanted, nothing is desired at all.
func replicaProblem(available, desired int32, zero bool) bool {
	return available != desired || (zero && desired == 0)
}

func workloadAttrs(cluster, ns string, available, desired int32) *snapshot.Attributes {
	return snapshot.NewAttributes().
		Set("cluster", cluster).
		Set("namespace", ns).
		Set("available_replicas", available).
		Set("replicas", desired)
}

func (c *Collector) deployments(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster, zero := c.cluster(ctx), c.opts.ScaledToZero[snapshot.Deployments]
	out := snapshot.Snapshot{}
	for i := range list.Items {
		d := &list.Items[i]
		if replicaProblem(d.Status.AvailableReplicas, d.Status.Replicas, zero) {
			out[objectKey(d.Namespace, d.Name)] = workloadAttrs(cluster, d.Namespace, d.Status.AvailableReplicas, d.Status.Replicas)
		}
	}
	return out, nil
}

func (c *Collector) statefulSets(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.AppsV1().StatefulSets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster, zero := c.cluster(ctx), c.opts.ScaledToZero[snapshot.StatefulSets]
	out := snapshot.Snapshot{}
	for i := range list.Items {
		s := &list.Items[i]
		if replicaProblem(s.Status.AvailableReplicas, s.Status.Replicas, zero) {
			out[objectKey(s.Namespace, s.Name)] = workloadAttrs(cluster, s.Namespace, s.Status.AvailableReplicas, s.Status.Replicas)
		}
	}
	return out, nil
}

func (c *Collector) replicaSets(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.AppsV1().ReplicaSets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster, zero := c.cluster(ctx), c.opts.ScaledToZero[snapshot.ReplicaSets]
	out := snapshot.Snapshot{}
	for i := range list.Items {
		r := &list.Items[i]
		if replicaProblem(r.Status.AvailableReplicas, r.Status.Replicas, zero) {
			out[objectKey(r.Namespace, r.Name)] = workloadAttrs(cluster, r.Namespace, r.Status.AvailableReplicas, r.Status.Replicas)
		}
	}
	return out, nil
}

func (c *Collector) daemonSets(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.AppsV1().DaemonSets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster, zero := c.cluster(ctx), c.opts.ScaledToZero[snapshot.DaemonSets]
	out := snapshot.Snapshot{}
	for i := range list.Items {
		d := &list.Items[i]
		if !daemonSetProblem(&d.Status, zero) {
			continue
		}
		out[objectKey(d.Namespace, d.Name)] = snapshot.NewAttributes().
			Set("cluster", cluster).
			Set("namespace", d.Namespace).
			Set("current_number_scheduled", d.Status.CurrentNumberScheduled).
			Set("desired_number_scheduled", d.Status.DesiredNumberScheduled).
			Set("number_available", d.Status.NumberAvailable).
			Set("number_ready", d.Status.NumberReady)
	}
	return out, nil
}

func daemonSetProblem(st *appsv1.DaemonSetStatus, zero bool) bool {
	return st.NumberAvailable != st.NumberReady || (zero && st.NumberReady == 0)
}

func (c *Collector) pvcs(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.CoreV1().PersistentVolumeClaims(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster := c.cluster(ctx)
	out := snapshot.Snapshot{}
	for i := range list.Items {
		pvc := &list.Items[i]
		if pvc.Status.Phase == corev1.ClaimBound {
			continue
		}
		out[objectKey(pvc.Namespace, pvc.Name)] = snapshot.NewAttributes().
			Set("cluster", cluster).
			Set("namespace", pvc.Namespace).
			Set("phase", string(pvc.Status.Phase)).
			Set("storage_class_name", pvc.Spec.StorageClassName)
	}
	return out, nil
}

func (c *Collector) pvs(ctx context.Context) (snapshot.Snapshot, error) {
	list, err := c.cs.CoreV1().PersistentVolumes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	cluster := c.cluster(ctx)
	out := snapshot.Snapshot{}
	for i := range list.Items {
		pv := &list.Items[i]
		if pv.Status.Phase == corev1.VolumeBound {
			continue
		}
		a := snapshot.NewAttributes().
			Set("cluster", cluster).
			Set("namespace", pv.Namespace).
			Set("phase", string(pv.Status.Phase)).
			Set("storage_class_name", pv.Spec.StorageClassName)
		if ref := pv.Spec.ClaimRef; ref != nil {
			a.Set("claim_ref", ref.Name).Set("claim_ref_namespace", ref.Namespace)
		}
		out[pv.Name] = a
	}
	return out, nil
}
