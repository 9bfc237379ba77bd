// Package cache keeps packaged workshop items on disk until they are published.
//
// Layout:
//
//	<root>/
//	  2893712123/
//	    2893712123.json
//	    [T7] Castle_Remake (1.2GB).rar
//
// Sidecars are written to a temporary file and renamed into place, so a
// crash never leaves a half-written sidecar. There is no locking.
package cache
