package planner

import "strings"

// Capability is a required skill tag for a plan.
type Capability string

const (
	CapabilityFrontend   Capability = "frontend"
	CapabilityBackend    Capability = "backend"
	CapabilityDatabase   Capability = "database"
	CapabilityAuth       Capability = "auth"
	CapabilityTesting    Capability = "testing"
	CapabilityDeployment Capability = "deployment"
	CapabilityGeneral    Capability = "general"
)

var capabilityKeywords = map[Capability][]string{
	CapabilityFrontend:   {"ui", "frontend", "button", "page", "component", "css", "react", "layout", "form"},
	CapabilityBackend:    {"api", "backend", "endpoint", "server", "handler", "service", "controller"},
	CapabilityDatabase:   {"database", "sql", "schema", "migration", "table", "query", "index"},
	CapabilityAuth:       {"auth", "login", "permission", "role", "token", "session", "oauth"},
	CapabilityTesting:    {"test", "spec", "coverage", "unit test", "e2e", "regression"},
	CapabilityDeployment: {"deploy", "ci", "cd", "pipeline", "docker", "release", "rollout"},
}

// IdentifyCapabilities scans requirement for capability keywords,
// returning a de-duplicated, deterministically ordered list. When no
// family matches, the result is {general}.
func IdentifyCapabilities(requirement string) []Capability {
	text := strings.ToLower(requirement)
	order := []Capability{
		CapabilityFrontend, CapabilityBackend, CapabilityDatabase,
		CapabilityAuth, CapabilityTesting, CapabilityDeployment,
	}

	var found []Capability
	for _, cap := range order {
		for _, kw := range capabilityKeywords[cap] {
			if strings.Contains(text, kw) {
				found = append(found, cap)
				break
			}
		}
	}
	if len(found) == 0 {
		return []Capability{CapabilityGeneral}
	}
	return found
}
