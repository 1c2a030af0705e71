package tools

// FullProfileTools is the fixed set granted by the "full" profile
var FullProfileTools = []string{"terminal", "file", "web", "calendar", "message", "memory", "batch"}

// Policy decides which tools a conversation may invoke. A named profile
// grants a fixed set; otherwise explicit allow/deny lists apply, with deny
// taking precedence.
type Policy struct {
	Profile string   `json:"profile,omitempty" yaml:"profile,omitempty"`
	Allow   []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny    []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// FullPolicy returns a policy granting the full built-in set
func FullPolicy() *Policy {
	return &Policy{Profile: "full"}
}

// IsAllowed reports whether the policy permits the named tool. A nil policy
// permits nothing.
func (p *Policy) IsAllowed(name string) bool {
	if p == nil {
		return false
	}
	if p.Profile == "full" {
		for _, t := range FullProfileTools {
			if t == name {
				return true
			}
		}
		return false
	}
	for _, d := range p.Deny {
		if d == name {
			return false
		}
	}
	if len(p.Allow) == 0 {
		// no allow list means allow everything not denied
		return true
	}
	for _, a := range p.Allow {
		if a == name {
			return true
		}
	}
	return false
}
