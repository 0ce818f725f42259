package requirements

import (
	"regexp"
	"strings"
)

var vmArgToken = regexp.MustCompile(`(?:[^\s"]+|"[^"]*")+`)

// ParseVMArgs splits a JVM arguments line. Double quotes group words and are
// removed, escaped quotes are kept. Repeated arguments are dropped.
func ParseVMArgs(line string) []string {
	args := []string{}
	seen := map[string]bool{}
	for _, token := range vmArgToken.FindAllString(line, -1) {
		arg := unquote(token)
		if seen[arg] {
			continue
		}
		seen[arg] = true
		args = append(args, arg)
	}
	return args
}

func unquote(token string) string {
	var sb strings.Builder
	for idx := 0; idx < len(token); idx++ {
		c := token[idx]
		if c == '\\' && idx+1 < len(token) && token[idx+1] == '"' {
			sb.WriteByte('"')
			idx++
			continue
		}
		if c == '"' {
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// JavaAgent returns the value of the first -javaagent: argument.
func JavaAgent(args []string) (string, bool) {
	const flag = "-javaagent:"
	for _, arg := range args {
		if strings.HasPrefix(arg, flag) {
			return strings.TrimPrefix(arg, flag), true
		}
	}
	return "", false
}
