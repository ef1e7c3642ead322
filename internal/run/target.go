package run

// TargetKind classifies what the provisioner handed us: just a source
// tree, or a running containerized instance (which always has source too).
type TargetKind string

const (
	TargetSourceOnly        TargetKind = "source_only"
	TargetInstanceAvailable TargetKind = "instance_available"
)

// Target describes the application under analysis. The provisioner owns
// the target's lifecycle; the engine only reads this descriptor.
type Target struct {
	Reference   string     `json:"reference"` // opaque handle owned by the provisioner
	Kind        TargetKind `json:"kind"`
	SourceDir   string     `json:"source_dir,omitempty"`
	BaseURL     string     `json:"base_url,omitempty"`
	Host        string     `json:"host,omitempty"`
	Port        int        `json:"port,omitempty"`
	ContainerID string     `json:"container_id,omitempty"`
}

// ValidKind reports whether k is one of the two provisioner-supplied kinds.
func ValidKind(k TargetKind) bool {
	return k == TargetSourceOnly || k == TargetInstanceAvailable
}
