package detector

import (
	"strings"

	"k8swatchdog/internal/snapshot"
)

const (
	entitySeparator = "----------\n"
	resolvedPrefix  = "Resolved "
)

// Diff renders the report fragments for one category transition.
//
// Identical snapshots yield nothing. Otherwise new or changed entities of
// cur are rendered through the category allow-list, followed, when prev was
// non-empty, by a resolved pass listing entities of prev that are gone from
// cur with only their identity field. A fragment is cut once it reaches
// maxLen bytes; maxLen <= 0 disables cutting.
func Diff(c snapshot.Category, prev, cur snapshot.Snapshot, maxLen int) []string {
	if cur.Equal(prev) {
		return nil
	}
	out := renderPass(c.Title(), c.Fields(), cur, prev, maxLen, false)
	if len(prev) > 0 {
		out = append(out, renderPass(resolvedPrefix+c.Title(), []string{snapshot.IdentityField}, prev, cur, maxLen, true)...)
	}
	return out
}

// renderPass walks cur and renders every entity not covered by other. In a
// resolved pass presence in other is enough to skip; otherwise the entity
// must also be unchanged.
func renderPass(title string, fields []string, cur, other snapshot.Snapshot, maxLen int, resolved bool) []string {
	header := title + " details:\n"
	var (
		out []string
		b   strings.Builder
	)
	b.WriteString(header)

	for _, name := range cur.Names() {
		attrs := cur[name]
		if prev, ok := other[name]; ok && (resolved || prev.Equal(attrs)) {
			continue
		}
		b.WriteString(entitySeparator)
		b.WriteString(name)
		b.WriteByte('\n')
		for _, line := range renderFields(attrs, fields) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if maxLen > 0 && b.Len() >= maxLen {
			out = append(out, b.String())
			b.Reset()
			b.WriteString(header)
		}
	}
	if b.Len() > len(header) {
		out = append(out, b.String())
	}
	return out
}
