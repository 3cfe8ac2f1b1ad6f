package controllers

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"io"
	"sort"
	"strconv"

	"github.com/controlplane/simkube/resources"
)

// safeEncodeAlphabet mirrors the reference controller's collision-safe
// encoding: each byte of the hash's decimal form maps through this
// 27-symbol alphabet (controller/deployment.rs's ALPHA_NUMS), which avoids
// characters that read as ambiguous or as a different token kind in a
// Kubernetes name.
const safeEncodeAlphabet = "bcdfghjklmnpqrstvwxz2456789"

// ComputeTemplateHash returns the pod-template-hash value for template at
// the given collision count: FNV-1a(32-bit) over the template's canonical
// form, mixed with collisionCount's little-endian bytes, then safe-encoded
// (spec.md §6 PodTemplateHash). The pod-template-hash label itself is
// excluded from the canonical form, so relabeling a template with its own
// prior hash does not change the hash it computes next.
func ComputeTemplateHash(template resources.PodTemplateSpec, collisionCount int32) string {
	h := fnv.New32a()
	writeTemplate(h, template)
	var cc [4]byte
	binary.LittleEndian.PutUint32(cc[:], uint32(collisionCount))
	h.Write(cc[:])
	return safeEncodeString(strconv.FormatUint(uint64(h.Sum32()), 10))
}

// SameTemplate reports whether a and b hash identically at collisionCount.
// The Deployment controller does not call it: findNewReplicaSet decides
// ReplicaSet reuse with equalIgnoreHash instead.
func SameTemplate(a, b resources.PodTemplateSpec, collisionCount int32) bool {
	return ComputeTemplateHash(a, collisionCount) == ComputeTemplateHash(b, collisionCount)
}

func writeTemplate(h hash.Hash, t resources.PodTemplateSpec) {
	writeStringMap(h, t.Labels, resources.LabelPodTemplateHash)
	writeStringMap(h, t.Annotations, "")
	for _, c := range t.Containers {
		io.WriteString(h, c.Name)
		io.WriteString(h, "\x00")
		io.WriteString(h, c.Image)
		io.WriteString(h, "\x00")
		writeResourceList(h, c.Requests)
	}
	io.WriteString(h, t.NodeName)
}

func writeStringMap(h hash.Hash, m map[string]string, excludeKey string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" && k == excludeKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(h, k)
		io.WriteString(h, "=")
		io.WriteString(h, m[k])
		io.WriteString(h, ";")
	}
}

func writeResourceList(h hash.Hash, rl resources.ResourceList) {
	names := make([]string, 0, len(rl))
	for n := range rl {
		names = append(names, string(n))
	}
	sort.Strings(names)
	for _, n := range names {
		q := rl[resources.ResourceName(n)]
		io.WriteString(h, n)
		io.WriteString(h, "=")
		io.WriteString(h, q.String())
		io.WriteString(h, ";")
	}
}

func safeEncodeString(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = safeEncodeAlphabet[int(s[i])%len(safeEncodeAlphabet)]
	}
	return string(out)
}
