package config

// BlobConfig contains blob store configuration for raw inspection images.
//
// The shipped store is filesystem backed: Root is the mount point and Bucket
// a subdirectory under it. An S3-compatible gateway mounted at Root works the
// same way since jobs only carry opaque "bucket/object" paths.
type BlobConfig struct {
	Root   string `env:"ROOT"   envDefault:"/var/lib/aoi/blobs"`
	Bucket string `env:"BUCKET" envDefault:"raw-images"`
}
