// Package artifact stores the consolidated output of a harvest run.
//
// An artifact is a JSON array of records, pretty-printed with two-space
// indentation. Every Put overwrites the artifact stored under the same name;
// readers never observe a partially written artifact.
//
// # Backends
//
//	// Local file, replaced atomically via temp file + rename
//	store, err := artifact.NewFileStore("./out")
//
//	// Redis string under "harvest:artifact:<name>" plus a metadata hash
//	store := artifact.NewRedisStore(redisClient, artifact.DefaultRedisPrefix)
//
//	err = store.Put(ctx, "leetcode_all_problems.json", records)
//	records, err := store.Get(ctx, "leetcode_all_problems.json")
//	if errors.Is(err, artifact.ErrNotFound) {
//		// nothing harvested yet
//	}
//
// # Metrics
//
//   - harvest_artifact_writes_total{backend, status} - Artifact writes
//   - harvest_artifact_size_bytes{backend} - Size of the last artifact written
//   - harvest_artifact_records{backend} - Records in the last artifact written
package artifact
