package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectInvoke       = "bridge.invoke"
	SubjectInvokedEvent = "bridge.invoked"
)

// BuildInvokedSubject builds a granular invocation event subject.
func BuildInvokedSubject(service, operation string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectInvokedEvent, token(service), token(operation))
}

// BuildServiceSubject builds the request subject of one service major, e.g.
// "bridge.invoke.widgets.v1".
func BuildServiceSubject(base, service string, major int) string {
	if base == "" {
		base = SubjectInvoke
	}
	return fmt.Sprintf("%s.%s.v%d", base, token(service), major)
}

// token makes a name safe as a single subject token.
func token(name string) string {
	if name == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(name)
}
