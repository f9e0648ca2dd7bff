package group

import (
	"testing"
)

func TestCluster_FormsGroupFromTightVectors(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	vecs := [][]float32{
		{1, 0, 0},
		{0.99, 0.01, 0},
		{0.98, 0.02, 0},
		{0, 1, 0}, // far outlier
	}
	groups := Cluster(ids, vecs, 0.05, 3, 0)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d: %v", len(groups), groups)
	}
	if len(groups[0]) != 3 {
		t.Fatalf("expected 3 members in the group, got %d", len(groups[0]))
	}
	for _, id := range groups[0] {
		if id == "d" {
			t.Fatalf("outlier d should not be grouped")
		}
	}
}

func TestCluster_NoiseBelowMinPointsFormsNoGroup(t *testing.T) {
	ids := []string{"a", "b"}
	vecs := [][]float32{{1, 0}, {0.99, 0.01}}
	groups := Cluster(ids, vecs, 0.05, 3, 0)
	if len(groups) != 0 {
		t.Fatalf("expected no groups below min_articles_per_group, got %d", len(groups))
	}
}

func TestCluster_SizeCapKeepsClosestToCentroid(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	vecs := [][]float32{
		{1, 0, 0},
		{0.99, 0.01, 0},
		{0.97, 0.03, 0},
		{0.90, 0.10, 0},
	}
	groups := Cluster(ids, vecs, 0.2, 2, 2)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("expected size cap to hold group to 2 members, got %d", len(groups[0]))
	}
	// The centroid lies between b and c; a and d are the farthest from it.
	if groups[0][0] != "b" || groups[0][1] != "c" {
		t.Fatalf("expected size cap to keep b and c, the members closest to the centroid, got %v", groups[0])
	}
}

func TestGroupID_IsDeterministicForSortedMembers(t *testing.T) {
	a := GroupID([]string{"a1", "a2", "a3"})
	b := GroupID([]string{"a1", "a2", "a3"})
	if a != b {
		t.Fatalf("expected identical ids for identical sorted input")
	}
	c := GroupID([]string{"a1", "a2"})
	if a == c {
		t.Fatalf("expected different ids for different member sets")
	}
}

func TestCosineDistance_IdenticalVectorsAreZero(t *testing.T) {
	v := []float32{0.6, 0.8}
	if d := cosineDistance(v, v); d > 1e-9 {
		t.Fatalf("expected ~0 distance for identical vectors, got %f", d)
	}
}

func TestCosineDistance_OrthogonalVectorsAreOne(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if d := cosineDistance(a, b); d < 0.99 || d > 1.01 {
		t.Fatalf("expected distance ~1 for orthogonal vectors, got %f", d)
	}
}
