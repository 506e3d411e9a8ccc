package entity

// User is the archive initiator as seen by this service. Cookie is the
// opaque credential forwarded to the file-copy service.
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	FullName   string   `json:"full_name"`
	Cookie     string   `json:"cookie"`
	SystemTags []string `json:"system_tags,omitempty"`
}

// HasSystemTag reports whether the user carries the given system tag.
func (u *User) HasSystemTag(tag string) bool {
	for _, t := range u.SystemTags {
		if t == tag {
			return true
		}
	}

	return false
}

// Contributor is one member of a registration's approval audience.
type Contributor struct {
	UserID string `json:"user_id"`
	Active bool   `json:"active"`
}

// NodeFile is one archived file owned by a node, identified by its content
// hash for post-archival reference resolution.
type NodeFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// FileRef is an embedded file reference inside frozen registration metadata:
// a file-picker answer pointing at a file on the pre-registration node.
type FileRef struct {
	SHA256           string `json:"sha256,omitempty"`
	SelectedFileName string `json:"selectedFileName,omitempty"`
	NodeID           string `json:"nodeId,omitempty"`
	ViewURL          string `json:"viewUrl,omitempty"`
}

// Question is one answer inside frozen registration metadata. Value holds
// nested sub-answers for compound questions; Extra carries an embedded file
// reference when the question is a file picker.
type Question struct {
	Value map[string]*Question `json:"value,omitempty"`
	Extra *FileRef             `json:"extra,omitempty"`
}

// Schema describes a registration schema. FileQuestions marks schemas whose
// answers may embed file references that finalization must rewrite.
type Schema struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Version       int    `json:"version"`
	FileQuestions bool   `json:"file_questions"`
}

// Node is a project or registration node in the surrounding platform's
// document store, reduced to the fields the archiver reads and writes.
type Node struct {
	ID               string                          `json:"id"`
	Title            string                          `json:"title"`
	ParentID         string                          `json:"parent_id,omitempty"`
	RegisteredFromID string                          `json:"registered_from_id,omitempty"`
	Addons           []string                        `json:"addons,omitempty"`
	Contributors     []Contributor                   `json:"contributors,omitempty"`
	Files            []NodeFile                      `json:"files,omitempty"`
	Schemas          []Schema                        `json:"schemas,omitempty"`
	RegisteredMeta   map[string]map[string]*Question `json:"registered_meta,omitempty"`
	ArchiveStatus    TargetStatus                    `json:"archive_status,omitempty"`
}

// ActiveContributors returns the subset of contributors eligible to approve
// the registration.
func (n *Node) ActiveContributors() []Contributor {
	var active []Contributor
	for _, c := range n.Contributors {
		if c.Active {
			active = append(active, c)
		}
	}

	return active
}

// HasAddon reports whether the addon is attached to the node.
func (n *Node) HasAddon(name string) bool {
	for _, a := range n.Addons {
		if a == name {
			return true
		}
	}

	return false
}
