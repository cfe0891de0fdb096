package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old checksums.
const (
	DomainProcessGraph = "tokenflow/process/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphChecksum returns the content hash of a process graph. Deploying a
// graph whose checksum equals the latest version's checksum does not create
// a new version.
func GraphChecksum(g *ProcessGraph) (string, error) {
	nodes := make([]any, len(g.Nodes))
	for i, n := range g.Nodes {
		node := map[string]any{
			"id":   n.ID,
			"type": string(n.Type),
		}
		if n.ParentID != "" {
			node["parent_id"] = n.ParentID
		}
		if n.JobType != "" {
			node["job_type"] = n.JobType
		}
		if n.Retries != 0 {
			node["retries"] = n.Retries
		}
		if len(n.Headers) > 0 {
			node["headers"] = n.Headers
		}
		nodes[i] = node
	}

	flows := make([]any, len(g.Flows))
	for i, f := range g.Flows {
		flow := map[string]any{
			"id":     f.ID,
			"source": f.SourceID,
			"target": f.TargetID,
		}
		if f.Condition != "" {
			flow["condition"] = f.Condition
		}
		if f.IsDefault {
			flow["default"] = true
		}
		flows[i] = flow
	}

	canonical, err := MarshalCanonical(map[string]any{
		"id":    g.ID,
		"nodes": nodes,
		"flows": flows,
	})
	if err != nil {
		return "", fmt.Errorf("GraphChecksum: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProcessGraph, canonical), nil
}
