package vast

import (
	"strconv"
	"strings"
)

// ParseOrder turns an order spec like "score-,dph_total+" into the
// [field, direction] pairs the search endpoint expects. A trailing '-'
// means descending, a trailing '+' or nothing means ascending.
func ParseOrder(order string) [][2]string {
	var out [][2]string
	for _, name := range strings.Split(order, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		direction := "asc"
		field := name
		switch {
		case strings.HasSuffix(name, "-"):
			direction = "desc"
			field = name[:len(name)-1]
		case strings.HasSuffix(name, "+"):
			field = name[:len(name)-1]
		}
		if field == "" {
			continue
		}
		out = append(out, [2]string{field, direction})
	}
	return out
}

// ParseQuery parses space-separated key=value filters into the provider's
// {"field": {"eq": value}} query form. Values are typed: true/false become
// booleans, numerics become floats, everything else stays a string.
func ParseQuery(query string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, item := range strings.Fields(query) {
		key, value, ok := strings.Cut(item, "=")
		if !ok || key == "" {
			continue
		}
		switch {
		case strings.EqualFold(value, "true"):
			out[key] = map[string]interface{}{"eq": true}
		case strings.EqualFold(value, "false"):
			out[key] = map[string]interface{}{"eq": false}
		default:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				out[key] = map[string]interface{}{"eq": f}
			} else {
				out[key] = map[string]interface{}{"eq": value}
			}
		}
	}
	return out
}
