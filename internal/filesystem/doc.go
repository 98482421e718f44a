/*
Package filesystem wraps the file operations of the poster cache with
retries for transient errors.

Cache and database directories are often bind mounts or NFS volumes.
A stale NFS handle (ESTALE) or a momentarily busy file (EAGAIN, EBUSY,
EINTR) is retried with exponential backoff; every other error is returned
at once.

	data, err := filesystem.ReadFile(path, filesystem.DefaultRetryConfig())

	err := filesystem.WriteFileAtomic(path, jpeg, 0o644, filesystem.DefaultRetryConfig())

WriteFileAtomic writes beside the target and renames it into place.

# Metrics

Operations are labelled with the volume holding the path. Register the
volumes once at startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "cache":    cacheDir,
	    "database": databaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
