package services

import (
	"sort"
	"sync"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// clusterRecord is one slot in the detector arena.
type clusterRecord struct {
	id             int
	representative string
	members        []string
}

// clusterEntry is what the detector keeps per clustered chunk.
type clusterEntry struct {
	documentID string
	section    domain.SectionLabel
	vector     []float32
}

// DuplicateDetector maintains near-duplicate clusters over chunk
// embeddings. Clusters live in an arena addressed by integer id with a
// separate chunk to cluster membership index. All mutation happens under
// a single writer lock; callers compute embeddings before calling in.
type DuplicateDetector struct {
	threshold     float64
	recomputeSize int

	mu         sync.RWMutex
	arena      []*clusterRecord
	membership map[string]int
	entries    map[string]*clusterEntry

	// generations is the newest generation clustered per document.
	generations map[string]int64
}

// NewDuplicateDetector creates an empty detector.
func NewDuplicateDetector(threshold float64, recomputeSize int) *DuplicateDetector {
	if recomputeSize < 2 {
		recomputeSize = 2
	}
	return &DuplicateDetector{
		threshold:     threshold,
		recomputeSize: recomputeSize,
		membership:    make(map[string]int),
		entries:       make(map[string]*clusterEntry),
		generations:   make(map[string]int64),
	}
}

// Add clusters the given chunks incrementally. Chunks without an
// embedding are skipped and counted in the return value.
func (d *DuplicateDetector) Add(chunks []domain.Chunk) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(chunks)
}

func (d *DuplicateDetector) addLocked(chunks []domain.Chunk) int {
	skipped := 0
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) == 0 {
			logger.Debug("duplicates: chunk %s has no embedding, not clustered", c.ID)
			skipped++
			continue
		}
		if _, ok := d.membership[c.ID]; ok {
			d.removeLocked(c.ID)
		}
		d.entries[c.ID] = &clusterEntry{
			documentID: c.DocumentID,
			section:    c.Section,
			vector:     c.Embedding,
		}
		d.insertLocked(c.ID, true)
	}
	return skipped
}

// insertLocked joins chunkID to the most similar representative at or
// above the threshold, or seeds a new cluster.
func (d *DuplicateDetector) insertLocked(chunkID string, allowRecompute bool) {
	vec := d.entries[chunkID].vector

	best := -1
	bestSim := 0.0
	for _, rec := range d.arena {
		if rec == nil {
			continue
		}
		sim := cosine(vec, d.entries[rec.representative].vector)
		if sim >= d.threshold && (best < 0 || sim > bestSim) {
			best, bestSim = rec.id, sim
		}
	}

	if best < 0 {
		rec := &clusterRecord{id: len(d.arena), representative: chunkID, members: []string{chunkID}}
		d.arena = append(d.arena, rec)
		d.membership[chunkID] = rec.id
		return
	}

	rec := d.arena[best]
	rec.members = append(rec.members, chunkID)
	d.membership[chunkID] = rec.id
	if allowRecompute && len(rec.members)%d.recomputeSize == 0 {
		d.recomputeLocked(rec)
	}
}

// recomputeLocked makes the member nearest the centroid the
// representative, then evicts and re-inserts members that no longer
// reach the threshold.
func (d *DuplicateDetector) recomputeLocked(rec *clusterRecord) {
	vectors := make([][]float32, 0, len(rec.members))
	for _, id := range rec.members {
		vectors = append(vectors, d.entries[id].vector)
	}
	center := centroid(vectors)

	best := ""
	bestSim := -2.0
	for _, id := range rec.members {
		sim := cosine(d.entries[id].vector, center)
		if sim > bestSim || (sim == bestSim && id < best) {
			best, bestSim = id, sim
		}
	}
	rec.representative = best

	repVec := d.entries[best].vector
	kept := rec.members[:0]
	var evicted []string
	for _, id := range rec.members {
		if id == best || cosine(d.entries[id].vector, repVec) >= d.threshold {
			kept = append(kept, id)
			continue
		}
		evicted = append(evicted, id)
	}
	rec.members = kept

	for _, id := range evicted {
		delete(d.membership, id)
		d.insertLocked(id, false)
	}
	if len(evicted) > 0 {
		logger.Debug("duplicates: cluster %d evicted %d members on recompute", rec.id, len(evicted))
	}
}

// Replace swaps every clustered chunk of documentID for chunks, which
// belong to generation gen. A generation older than one already
// clustered for the document is ignored and current is false.
func (d *DuplicateDetector) Replace(documentID string, gen int64, chunks []domain.Chunk) (skipped int, current bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if held, ok := d.generations[documentID]; ok && held > gen {
		return 0, false
	}
	d.generations[documentID] = gen
	d.removeDocumentLocked(documentID)
	return d.addLocked(chunks), true
}

// Remove drops chunks from their clusters.
func (d *DuplicateDetector) Remove(chunkIDs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range chunkIDs {
		d.removeLocked(id)
	}
}

// RemoveDocument drops every chunk of a document.
func (d *DuplicateDetector) RemoveDocument(documentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeDocumentLocked(documentID)
}

func (d *DuplicateDetector) removeDocumentLocked(documentID string) {
	var ids []string
	for id, e := range d.entries {
		if e.documentID == documentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		d.removeLocked(id)
	}
}

func (d *DuplicateDetector) removeLocked(chunkID string) {
	cid, ok := d.membership[chunkID]
	if !ok {
		return
	}
	delete(d.membership, chunkID)
	rec := d.arena[cid]
	for i, id := range rec.members {
		if id == chunkID {
			rec.members = append(rec.members[:i], rec.members[i+1:]...)
			break
		}
	}
	delete(d.entries, chunkID)

	switch {
	case len(rec.members) == 0:
		d.arena[cid] = nil
	case rec.representative == chunkID:
		d.recomputeLocked(rec)
	}
}

// Rebuild discards all clusters and re-clusters chunks in ID order, so
// the result depends only on the chunk set.
func (d *DuplicateDetector) Rebuild(chunks []domain.Chunk) int {
	sorted := make([]domain.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	d.mu.Lock()
	defer d.mu.Unlock()
	d.arena = nil
	d.membership = make(map[string]int)
	d.entries = make(map[string]*clusterEntry)
	d.generations = make(map[string]int64)
	for _, c := range sorted {
		if c.Generation > d.generations[c.DocumentID] {
			d.generations[c.DocumentID] = c.Generation
		}
	}
	return d.addLocked(sorted)
}

// ClusterOf returns the cluster of a chunk when it has at least one
// duplicate.
func (d *DuplicateDetector) ClusterOf(chunkID string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cid, ok := d.membership[chunkID]
	if !ok || len(d.arena[cid].members) < 2 {
		return -1, false
	}
	return cid, true
}

// Len returns the number of clustered chunks.
func (d *DuplicateDetector) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Clusters returns every cluster with at least two members, by id.
func (d *DuplicateDetector) Clusters() []domain.DuplicateCluster {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.DuplicateCluster
	for _, rec := range d.arena {
		if rec == nil || len(rec.members) < 2 {
			continue
		}
		out = append(out, d.snapshotLocked(rec.id, rec.representative, rec.members))
	}
	return out
}

func (d *DuplicateDetector) snapshotLocked(id int, representative string, members []string) domain.DuplicateCluster {
	repVec := d.entries[representative].vector
	c := domain.DuplicateCluster{ID: id, Representative: representative}
	for _, mid := range members {
		e := d.entries[mid]
		sim := 1.0
		if mid != representative {
			sim = cosine(e.vector, repVec)
		}
		c.Members = append(c.Members, domain.ClusterMember{
			ChunkID:    mid,
			DocumentID: e.documentID,
			Section:    e.section,
			Similarity: sim,
		})
	}
	return c
}

// Report returns clusters restricted to documentIDs (all documents when
// empty), annotated with the documents each spans. When the
// representative falls outside the restriction, the remaining member
// most similar to it represents the reported cluster and members are
// re-scored against it.
func (d *DuplicateDetector) Report(documentIDs []string) []domain.ClusterReport {
	allowed := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var reports []domain.ClusterReport
	for _, rec := range d.arena {
		if rec == nil || len(rec.members) < 2 {
			continue
		}

		members := rec.members
		if len(allowed) > 0 {
			members = nil
			for _, id := range rec.members {
				if allowed[d.entries[id].documentID] {
					members = append(members, id)
				}
			}
		}
		if len(members) < 2 {
			continue
		}

		rep := rec.representative
		if !containsID(members, rep) {
			rep = d.nearestLocked(members, d.entries[rep].vector)
			repVec := d.entries[rep].vector
			kept := members[:0:0]
			for _, id := range members {
				if id == rep || cosine(d.entries[id].vector, repVec) >= d.threshold {
					kept = append(kept, id)
				}
			}
			members = kept
			if len(members) < 2 {
				continue
			}
		}

		cluster := d.snapshotLocked(rec.id, rep, members)
		reports = append(reports, domain.ClusterReport{
			Cluster:     cluster,
			DocumentIDs: clusterDocuments(cluster),
		})
	}
	return reports
}

func (d *DuplicateDetector) nearestLocked(ids []string, target []float32) string {
	best := ""
	bestSim := -2.0
	for _, id := range ids {
		sim := cosine(d.entries[id].vector, target)
		if sim > bestSim || (sim == bestSim && id < best) {
			best, bestSim = id, sim
		}
	}
	return best
}

// Stats summarises duplication over all clustered chunks.
func (d *DuplicateDetector) Stats() domain.DuplicateStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := domain.DuplicateStats{SectionBreakdown: map[domain.SectionLabel]domain.SectionDuplicates{}}
	docs := map[string]bool{}
	for _, rec := range d.arena {
		if rec == nil || len(rec.members) < 2 {
			continue
		}
		stats.TotalClusters++
		stats.TotalDuplicateChunks += len(rec.members)

		sections := map[domain.SectionLabel]bool{}
		for _, id := range rec.members {
			e := d.entries[id]
			docs[e.documentID] = true
			b := stats.SectionBreakdown[e.section]
			b.Chunks++
			if !sections[e.section] {
				sections[e.section] = true
				b.Clusters++
			}
			stats.SectionBreakdown[e.section] = b
		}
	}
	stats.AffectedDocuments = len(docs)
	if n := len(d.entries); n > 0 {
		stats.DuplicatePercentage = float64(stats.TotalDuplicateChunks) / float64(n) * 100
	}
	return stats
}

func clusterDocuments(c domain.DuplicateCluster) []string {
	seen := map[string]bool{}
	var ids []string
	for _, m := range c.Members {
		if !seen[m.DocumentID] {
			seen[m.DocumentID] = true
			ids = append(ids, m.DocumentID)
		}
	}
	sort.Strings(ids)
	return ids
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
