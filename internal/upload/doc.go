// Package upload runs an ordered list of upload tasks over one FTP session.
//
// The Coordinator opens each task's source, hands it to the retry
// controller, and closes the handle exactly once whatever the outcome. A
// failed task never stops the run; only invalid configuration or a failed
// startup connection does. Outcomes come back in input order, one per task.
//
// Tasks are built from paths (FileTask), already-open streams (StreamTask),
// or in-memory buffers (BytesTask). A Catalog is the name to task lookup built
// once from the buffer directory. Observers receive progress events and
// outcomes as they happen.
package upload
