// Package findhub provides an embedded hybrid retrieval engine for
// lost-and-found item catalogs.
//
// A Catalog combines an append-only flat vector index with an
// append-only metadata store. Items are ingested once and never
// mutated; searches filter on metadata first, recall candidates by
// vector distance, and fuse semantic and keyword relevance into a
// single score.
//
// # Quick Start
//
//	ctx := context.Background()
//	catalog, _ := findhub.Open(ctx, "./data", findhub.WithDimension(512))
//	defer catalog.Close()
//
//	record, _ := catalog.Ingest(ctx, findhub.Item{
//	    Description: "red umbrella with wooden handle",
//	    Location:    "Main Library",
//	    Category:    "Accessories",
//	}, vector)
//
//	results, _ := catalog.Search(ctx, findhub.Query{
//	    Text:   "red umbrella",
//	    Vector: queryVector,
//	})
//
// Identifiers are assigned by the index: a record's VecID equals the
// index position of its vector, and the index is the source of truth
// for the next identifier. A failed ingest can leave the index one
// vector ahead of the metadata store; Reconcile reports the drift and
// the ingest journal repairs interrupted writes on the next Open.
package findhub
