// Package flagx pre-scans command lines for the few flags that must be known
// before the full flag set is built, such as the path of a JSON config file.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// ConfigFlags are the spellings accepted for the config file path.
var ConfigFlags = []string{"-c", "-config", "--config"}

// FilterArgs keeps only the flags named in allowedFlags together with their
// values. Both "-c file" and "--config=file" forms are recognised. A value is
// taken from the next argument unless that argument itself looks like a flag.
// Everything else, including positional arguments, is dropped.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath returns the config file path given by any of ConfigFlags in
// args, or "" when none is present. The last occurrence wins. Unrelated
// flags are ignored so callers can parse their own flag sets afterwards.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFlags))

	return path
}
