package params

import "strings"

// ParseRemaps extracts "name:=value" arguments. A leading underscore marks a
// private parameter ("_labels_path:=x" sets "~labels_path"). Names are
// resolved against node; the remaining arguments are returned in order.
func ParseRemaps(node string, args []string) (Static, []string) {
	remaps := Static{}
	rest := make([]string, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, ":=")
		if !ok || name == "" || strings.HasPrefix(name, "-") {
			rest = append(rest, arg)
			continue
		}
		if strings.HasPrefix(name, "_") {
			name = "~" + name[1:]
		}
		remaps[Resolve(node, name)] = value
	}
	return remaps, rest
}
