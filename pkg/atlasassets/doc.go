// Package atlasassets attaches uploadable file records to arbitrary
// application entities. Files live on a pluggable blob store (memory,
// filesystem, S3); metadata (storage key, mime, size, label, category, sort
// order) lives in a pluggable repository (memory, Postgres) with soft-delete
// and purge semantics.
//
// Construct a Service with functional options:
//
//	resolver, _ := assetpath.NewPatternResolver("{model_type}/{model_id}/{uuid}.{extension}")
//	svc, err := atlasassets.New(
//	    atlasassets.WithRepository(memoryrepo.New()),
//	    atlasassets.WithBlobStore(memorystorage.New()),
//	    atlasassets.WithPathResolver(resolver),
//	    atlasassets.WithSortScopes(atlasassets.ScopeOwnerType, atlasassets.ScopeOwnerID),
//	)
//
// Uploads validate the file against extension and size constraints, resolve
// a storage key, write the blob, then persist the record. Deletes are soft
// by default and reversible until Purge reclaims the blobs and records.
package atlasassets
