package detector

import (
	"strconv"
	"strings"

	"k8swatchdog/internal/snapshot"
)

const (
	// maxRenderDepth bounds nesting; deeper maps collapse to one line.
	maxRenderDepth = 4
	indentUnit     = "   "
)

type renderFrame struct {
	key   string
	val   any
	depth int
}

// renderFields returns the "key= value" lines for the allowed fields of a.
// A nil allow list renders every field. Nested maps are walked with an
// explicit stack: "key:" followed by their children indented one level.
func renderFields(a *snapshot.Attributes, allow []string) []string {
	var allowed map[string]bool
	if allow != nil {
		allowed = make(map[string]bool, len(allow))
		for _, k := range allow {
			allowed[k] = true
		}
	}

	var lines []string
	for _, k := range a.Keys() {
		if allowed != nil && !allowed[k] {
			continue
		}
		v, _ := a.Get(k)
		lines = visit(lines, renderFrame{key: k, val: v})
	}
	return lines
}

func visit(lines []string, root renderFrame) []string {
	stack := []renderFrame{root}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		indent := strings.Repeat(indentUnit, f.depth)

		nested, ok := f.val.(*snapshot.Attributes)
		if !ok {
			if s, ok := scalarText(f.val); ok {
				lines = append(lines, indent+f.key+"= "+s)
			}
			continue
		}
		if nested.Len() == 0 {
			continue
		}
		if f.depth >= maxRenderDepth {
			lines = append(lines, indent+f.key+"= "+flatten(nested))
			continue
		}
		lines = append(lines, indent+f.key+":")
		keys := nested.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			v, _ := nested.Get(keys[i])
			stack = append(stack, renderFrame{key: keys[i], val: v, depth: f.depth + 1})
		}
	}
	return lines
}

// scalarText formats a leaf value; false means the field is omitted.
func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		return strconv.FormatBool(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

// flatten renders one level of a map inline; anything nested below it is
// elided.
func flatten(a *snapshot.Attributes) string {
	parts := make([]string, 0, a.Len())
	for _, k := range a.Keys() {
		v, _ := a.Get(k)
		if _, ok := v.(*snapshot.Attributes); ok {
			parts = append(parts, k+"={...}")
			continue
		}
		if s, ok := scalarText(v); ok {
			parts = append(parts, k+"="+s)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
