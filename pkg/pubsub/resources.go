package pubsub

import (
	"fmt"
	"strings"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// qualify expands a short id into projects/<project>/<kind>/<id>. Names that
// are already fully qualified for the same kind pass through untouched.
func qualify(projectID string, kind resourceKind, name string) string {
	id := strings.TrimSpace(name)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+string(kind)+"/") {
		return id
	}
	project := strings.TrimSpace(projectID)
	if project == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id)
}

// shortName is the trailing id of a resource name, used in log fields.
func shortName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
