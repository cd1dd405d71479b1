// Command chunktree-demo exercises the node-page core end to end through
// the btreeindex demo map, the way the teacher's cmd/dinodb exercises
// pkg/btree. It does not expose a network frontend: spec.md §1 names the
// network/command frontend explicitly out of scope for this subsystem.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"chunktree/pkg/btreeindex"
	"chunktree/pkg/config"
	"chunktree/pkg/keytype"
	"chunktree/pkg/memstore"
)

func main() {
	count := flag.Int("n", 64, "number of keys to insert")
	leafFanout := flag.Int("leaf-fanout", 8, "max entries per leaf before split")
	nodeFanout := flag.Int("node-fanout", 8, "max keys per node before split")
	chunkBlocks := flag.Uint("chunk-blocks", 256, "initial free-space tracking capacity, in blocks, for a new chunk")
	verbose := flag.Bool("v", false, "print the tree after checkpoint")
	flag.Parse()

	log.SetPrefix(fmt.Sprintf("%s: ", config.EngineName))

	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	idx := btreeindex.OpenIndex(keytype.Int64Codec{}, store, *leafFanout, *nodeFanout)

	for i := 0; i < *count; i++ {
		key := int64(i)
		if err := idx.Insert(key, key*key); err != nil {
			log.Fatalf("insert %d: %v", key, err)
		}
	}

	for i := 0; i < *count; i++ {
		key := int64(i)
		got, ok, err := idx.Get(key)
		if err != nil {
			log.Fatalf("get %d: %v", key, err)
		}
		if !ok || got != key*key {
			log.Fatalf("get %d: want %d, got %d (found=%v)", key, key*key, got, ok)
		}
	}
	fmt.Printf("inserted and verified %d keys\n", *count)

	chunk, buf := store.NewChunk(*chunkBlocks)
	if err := idx.Checkpoint(chunk, buf); err != nil {
		log.Fatalf("checkpoint: %v", err)
	}
	fmt.Printf("checkpointed into chunk %d, %d bytes, %d pages marked removable\n",
		chunk.ID(), buf.Len(), len(idx.Removable()))

	if *verbose {
		if err := idx.Print(os.Stdout); err != nil {
			log.Fatalf("print: %v", err)
		}
	}
}
