package phases

import "strings"

// exportKey forms the resource key of an export-scoped resource.
func exportKey(nodeID, targetID string) string {
	return nodeID + "/" + targetID
}

// splitExportKey splits a "<node_id>/<target_id>" key.
func splitExportKey(key string) (nodeID, targetID string, ok bool) {
	return strings.Cut(key, "/")
}

// nodeKeyID strips the "node/" prefix from a precheck resource key.
func nodeKeyID(key string) string {
	return strings.TrimPrefix(key, "node/")
}
