package build

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Artifact is one in-memory output file, addressed by the URL path it is served under.
type Artifact struct {
	URLPath  string
	Contents []byte
	Hash     string
}

// AssetInfo summarizes an artifact for logs and hot notifications.
type AssetInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Assets returns the summary of each artifact, sorted by name.
func Assets(artifacts []Artifact) []AssetInfo {
	out := make([]AssetInfo, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, AssetInfo{Name: a.URLPath, Size: len(a.Contents)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HashArtifacts returns a short digest identifying a set of artifacts. It is
// stable for equal inputs regardless of order.
func HashArtifacts(artifacts []Artifact) string {
	if len(artifacts) == 0 {
		return ""
	}
	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URLPath < sorted[j].URLPath })

	h := sha256.New()
	for _, a := range sorted {
		h.Write([]byte(a.URLPath))
		h.Write([]byte{0})
		if a.Hash != "" {
			h.Write([]byte(a.Hash))
		} else {
			h.Write(a.Contents)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:20]
}
