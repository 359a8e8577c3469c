package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesEqualIgnoresOrder(t *testing.T) {
	t.Parallel()

	a := NewAttributes().Set("namespace", "ns1").Set("replicas", 3).
		Set("conditions", NewAttributes().Set("Ready", "True").Set("DiskPressure", "False"))
	b := NewAttributes().Set("conditions", NewAttributes().Set("DiskPressure", "False").Set("Ready", "True")).
		Set("replicas", int32(3)).Set("namespace", "ns1")

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))

	c := NewAttributes().Set("namespace", "ns1").Set("replicas", 3).
		Set("conditions", NewAttributes().Set("Ready", "False").Set("DiskPressure", "False"))
	assert.False(t, a.Equal(c))
}

func TestAttributesNilAndEmpty(t *testing.T) {
	t.Parallel()

	var nilAttrs *Attributes
	assert.True(t, nilAttrs.Equal(NewAttributes()))
	assert.Equal(t, 0, nilAttrs.Len())
	_, ok := nilAttrs.Get("x")
	assert.False(t, ok)

	a := NewAttributes().Set("x", nil)
	b := NewAttributes().Set("x", "")
	assert.False(t, a.Equal(b))
}

func TestAttributesSetKeepsFirstPosition(t *testing.T) {
	t.Parallel()

	a := NewAttributes().Set("b", 1).Set("a", 2).Set("b", 3)
	assert.Equal(t, []string{"b", "a"}, a.Keys())
	v, _ := a.Get("b")
	assert.Equal(t, int64(3), v)
}

func TestFromMapNests(t *testing.T) {
	t.Parallel()

	a := FromMap(map[string]any{
		"phase": "Pending",
		"cs_0":  map[string]any{"ready": false, "restart_count": 2},
	})
	assert.Equal(t, []string{"cs_0", "phase"}, a.Keys())
	v, _ := a.Get("cs_0")
	nested, ok := v.(*Attributes)
	require.True(t, ok)
	rc, _ := nested.Get("restart_count")
	assert.Equal(t, int64(2), rc)
}

func TestSnapshotEqual(t *testing.T) {
	t.Parallel()

	s1 := Snapshot{"pod-a": NewAttributes().Set("namespace", "ns1").Set("phase", "Running")}
	s2 := Snapshot{"pod-a": NewAttributes().Set("phase", "Running").Set("namespace", "ns1")}
	assert.True(t, s1.Equal(s2))
	assert.True(t, Snapshot(nil).Equal(Snapshot{}))
	assert.False(t, s1.Equal(Snapshot{}))

	s3 := Snapshot{"pod-b": s1["pod-a"]}
	assert.False(t, s1.Equal(s3))
}

func TestSnapshotNamesSorted(t *testing.T) {
	t.Parallel()

	s := Snapshot{"c": nil, "a": nil, "b": nil}
	assert.Equal(t, []string{"a", "b", "c"}, s.Names())
}

func TestCategoryMetadata(t *testing.T) {
	t.Parallel()

	assert.Len(t, Order, 8)
	for _, c := range Order {
		assert.True(t, c.Valid(), c)
		assert.NotEmpty(t, c.Title())
		assert.NotEmpty(t, c.Fields())
	}
	assert.Equal(t, "Pod", Pods.Title())
	assert.Contains(t, Pods.Fields(), "phase")
	assert.Contains(t, Pods.Fields(), IdentityField)

	_, ok := ParseCategory("services")
	assert.False(t, ok)
}
