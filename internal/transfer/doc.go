// Package transfer moves whole files between the local filesystem and object
// storage. Downloads go through a .partial file, resume with a range request
// when one is left over, are verified against the object's ETag and are
// renamed into place atomically. Uploads verify the ETag the server returns.
// Directory uploads fan out over a bounded worker pool.
package transfer
