package group

import (
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
)

// point pairs an article id with its embedding vector, indexed positionally
// for the clustering pass.
type point struct {
	articleID string
	vec       []float32
}

// Cluster runs density-based clustering over ids/vecs (parallel slices) and
// returns the resulting member-id groups, each with ≥ minPoints members.
// Distance is cosine distance d = 1 - cos(u, v); a point's neighborhood is
// every other point within eps. A point with fewer than minPoints - 1
// neighbors is noise and is excluded from every group. A point first
// labeled noise that lies within eps of one or more clusters' members joins
// the cluster with the closest centroid, breaking further ties by the
// cluster's smallest sorted member article id. A non-core point reached
// during a cluster's expansion stays in that cluster; it is not compared
// against the centroids of clusters formed later.
func Cluster(ids []string, vecs [][]float32, eps float64, minPoints int, maxPerGroup int) [][]string {
	n := len(ids)
	if n == 0 {
		return nil
	}
	points := make([]point, n)
	for i := range ids {
		points[i] = point{articleID: ids[i], vec: vecs[i]}
	}

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if cosineDistance(points[i].vec, points[j].vec) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	assigned := make([]int, n) // -1 = unassigned, -2 = noise
	for i := range assigned {
		assigned[i] = -1
	}

	var clusters [][]int
	for i := 0; i < n; i++ {
		if assigned[i] != -1 {
			continue
		}
		if len(neighbors[i]) < minPoints-1 {
			assigned[i] = -2
			continue
		}
		clusterIdx := len(clusters)
		members := expandCluster(i, neighbors, assigned, minPoints, clusterIdx)
		clusters = append(clusters, members)
	}

	// Points reachable from a core point's neighborhood but not themselves
	// core (border points) may have been left unassigned if visited before
	// their cluster existed; assign them by nearest centroid now.
	centroids := make([][]float32, len(clusters))
	for c, members := range clusters {
		centroids[c] = centroidOf(points, members)
	}

	for i := 0; i < n; i++ {
		if assigned[i] != -2 {
			continue
		}
		// Only reassign noise points that are in fact within eps of some
		// cluster's members (border points of that cluster).
		best, bestDist := -1, math.MaxFloat64
		var tied []int
		for c, members := range clusters {
			if !anyWithinEps(points[i].vec, points, members, eps) {
				continue
			}
			d := cosineDistance(points[i].vec, centroids[c])
			if d < bestDist {
				best, bestDist, tied = c, d, []int{c}
			} else if d == bestDist {
				tied = append(tied, c)
			}
		}
		if best == -1 {
			continue // stays noise
		}
		if len(tied) > 1 {
			best = resolveTie(points, clusters, tied)
		}
		clusters[best] = append(clusters[best], i)
		assigned[i] = best
	}

	groups := make([][]string, 0, len(clusters))
	for _, members := range clusters {
		if len(members) < minPoints {
			continue
		}
		ids := memberIDs(points, members)
		if maxPerGroup > 0 && len(ids) > maxPerGroup {
			ids = capBySizeToClosest(points, members, ids, maxPerGroup)
		}
		sort.Strings(ids)
		groups = append(groups, ids)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func expandCluster(seed int, neighbors [][]int, assigned []int, minPoints, clusterIdx int) []int {
	queue := append([]int{}, neighbors[seed]...)
	members := []int{seed}
	assigned[seed] = clusterIdx

	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		switch assigned[q] {
		case clusterIdx:
			continue
		case -2:
			assigned[q] = clusterIdx
			members = append(members, q)
			continue
		case -1:
			assigned[q] = clusterIdx
			members = append(members, q)
			if len(neighbors[q]) >= minPoints-1 {
				queue = append(queue, neighbors[q]...)
			}
		}
	}
	return members
}

func centroidOf(points []point, members []int) []float32 {
	if len(members) == 0 {
		return nil
	}
	dims := len(points[members[0]].vec)
	c := make([]float32, dims)
	for _, m := range members {
		for d := 0; d < dims; d++ {
			c[d] += points[m].vec[d]
		}
	}
	for d := range c {
		c[d] /= float32(len(members))
	}
	normalize(c)
	return c
}

func anyWithinEps(v []float32, points []point, members []int, eps float64) bool {
	for _, m := range members {
		if cosineDistance(v, points[m].vec) <= eps {
			return true
		}
	}
	return false
}

// resolveTie picks the cluster whose members include the lexicographically
// smallest article id, among the candidate clusters tied on centroid distance.
func resolveTie(points []point, clusters [][]int, candidates []int) int {
	best, bestID := -1, ""
	for _, c := range candidates {
		for _, m := range clusters[c] {
			id := points[m].articleID
			if best == -1 || id < bestID {
				best, bestID = c, id
			}
		}
	}
	return best
}

func memberIDs(points []point, members []int) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = points[m].articleID
	}
	return out
}

// capBySizeToClosest keeps the maxPerGroup members closest to the group's
// centroid, dropping the rest as overflow.
func capBySizeToClosest(points []point, members []int, ids []string, maxPerGroup int) []string {
	centroid := centroidOf(points, members)
	type ranked struct {
		id   string
		dist float64
	}
	byID := make(map[string][]float32, len(members))
	for _, m := range members {
		byID[points[m].articleID] = points[m].vec
	}
	rs := make([]ranked, 0, len(ids))
	for _, id := range ids {
		rs = append(rs, ranked{id: id, dist: cosineDistance(byID[id], centroid)})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].dist != rs[j].dist {
			return rs[i].dist < rs[j].dist
		}
		return rs[i].id < rs[j].id
	})
	out := make([]string, 0, maxPerGroup)
	for i := 0; i < maxPerGroup && i < len(rs); i++ {
		out = append(out, rs[i].id)
	}
	return out
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		na += float64(x) * float64(x)
	}
	for _, x := range b {
		nb += float64(x) * float64(x)
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

// GroupID hashes the sorted member article ids so that group identity is
// stable across re-runs on identical inputs.
func GroupID(sortedMemberIDs []string) string {
	h := sha256.New()
	for _, id := range sortedMemberIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}
