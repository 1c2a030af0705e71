package session

import "strings"

// Conversation kinds. "isolated" conversations are created fresh by the
// scheduler for fire-and-forget agent turns.
const (
	KindMain     = "main"
	KindGroup    = "group"
	KindChannel  = "channel"
	KindIsolated = "isolated"
)

// Key derives the stable session key for (agentID, kind, label).
// The key is a pure function of its inputs: the same triple always yields the
// same key, and distinct labels under one (agent, kind) yield distinct keys.
// Format: "agent:<agentID>:<kind>[:<label>]".
func Key(agentID, kind, label string) string {
	if kind == "" {
		kind = KindMain
	}
	key := "agent:" + agentID + ":" + kind
	if label != "" {
		key += ":" + label
	}
	return key
}

// KeyInfo contains the parsed components of a session key
type KeyInfo struct {
	Raw     string
	AgentID string
	Kind    string
	Label   string
}

// ParseKey splits a session key back into its components. Unrecognized keys
// return a KeyInfo with only Raw set.
func ParseKey(key string) *KeyInfo {
	info := &KeyInfo{Raw: key}

	parts := strings.SplitN(key, ":", 4)
	if len(parts) < 3 || parts[0] != "agent" {
		return info
	}

	info.AgentID = parts[1]
	info.Kind = parts[2]
	if len(parts) == 4 {
		info.Label = parts[3]
	}
	return info
}
