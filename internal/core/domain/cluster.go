package domain

// ClusterMember is one chunk in a DuplicateCluster.
type ClusterMember struct {
	ChunkID    string       `json:"chunk_id"`
	DocumentID string       `json:"document_id"`
	Section    SectionLabel `json:"section"`

	// Similarity is the cosine similarity to the cluster representative.
	Similarity float64 `json:"similarity"`
}

// DuplicateCluster is a set of near-identical chunks.
// Every member's similarity to the representative is at least the
// configured duplicate threshold, and clusters are disjoint.
type DuplicateCluster struct {
	// ID addresses the cluster in the detector arena.
	ID int

	// Representative is the chunk ID of the most central member.
	Representative string

	// Members includes the representative.
	Members []ClusterMember
}

// Size returns the member count.
func (c *DuplicateCluster) Size() int {
	return len(c.Members)
}

// AverageSimilarity is the mean member similarity to the representative,
// excluding the representative itself.
func (c *DuplicateCluster) AverageSimilarity() float64 {
	var sum float64
	n := 0
	for _, m := range c.Members {
		if m.ChunkID == c.Representative {
			continue
		}
		sum += m.Similarity
		n++
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// ClusterReport is a cluster restricted to a set of documents,
// annotated with the documents it spans.
type ClusterReport struct {
	Cluster     DuplicateCluster
	DocumentIDs []string
}

// SpansDocuments reports whether the cluster crosses document boundaries.
func (r *ClusterReport) SpansDocuments() bool {
	return len(r.DocumentIDs) > 1
}

// SectionDuplicates is the per-section breakdown in DuplicateStats.
type SectionDuplicates struct {
	Clusters int `json:"clusters"`
	Chunks   int `json:"chunks"`
}

// DuplicateStats summarises duplication across the corpus.
type DuplicateStats struct {
	TotalClusters        int                                `json:"total_duplicate_clusters"`
	TotalDuplicateChunks int                                `json:"total_duplicate_chunks"`
	AffectedDocuments    int                                `json:"affected_documents"`
	DuplicatePercentage  float64                            `json:"duplicate_percentage"`
	SectionBreakdown     map[SectionLabel]SectionDuplicates `json:"section_breakdown"`
}
