// Package fabric holds the external collaborator contracts of the
// pipeline and their concrete clients: the NVMe-oF target control
// plane on each storage node (driven over SSH against nvmet
// configfs), and the aggregator / Opus RAID control planes (HTTP
// JSON APIs). Phases talk to collaborators exclusively through the
// interfaces here, which is what makes them mockable and the applies
// idempotent.
package fabric
