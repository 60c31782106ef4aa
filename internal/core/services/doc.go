// Package services implements the driving ports on top of the driven ones.
//
// The Indexer turns files into sections, chunks and vectors. The Retriever
// ranks evidence with the section bonus and duplicate suppression. The
// Synthesizer builds the prompt and reads the citations back out of the
// answer. QueryService and LibraryService compose them for the adapters.
//
// Nothing here touches the network or the filesystem directly.
package services
