package inventory

import (
	"sort"

	"github.com/anstrom/topodraw/internal/report"
)

// Cluster is the set of hosts sharing one hop distance.
type Cluster struct {
	Distance int
	Hosts    []report.Host
}

// Group partitions hosts by hop distance. Clusters come back in ascending
// distance; within a cluster hosts keep their input order.
func Group(hosts []report.Host) []Cluster {
	index := make(map[int]int)
	clusters := make([]Cluster, 0)

	for _, h := range hosts {
		d := h.Distance()
		i, ok := index[d]
		if !ok {
			i = len(clusters)
			index[d] = i
			clusters = append(clusters, Cluster{Distance: d})
		}
		clusters[i].Hosts = append(clusters[i].Hosts, h)
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].Distance < clusters[b].Distance
	})
	return clusters
}
