package entity

import "fmt"

// Revision selects one side of a dual-revision addon: the remote revision
// tag to stat and copy, the suffix appended to the destination folder name,
// and the suffix distinguishing the job target.
type Revision struct {
	Selector     string
	FolderSuffix string
	TargetSuffix string
}

// DualRevision is the capability of addons whose storage exposes a draft and
// a published variant of the same tree. Each variant is archived into its
// own destination folder; archiving both into one folder races.
type DualRevision struct {
	Published Revision
	Draft     Revision
}

// Addon describes a storage addon the archiver knows how to snapshot.
type Addon struct {
	Name              string
	ArchiveFolderName string
	DualRevision      *DualRevision
}

// Registry maps addon names to their descriptors and resolves job target
// names back to the addon and revision they stand for.
type Registry struct {
	addons map[string]Addon
}

func NewRegistry(addons ...Addon) *Registry {
	m := make(map[string]Addon, len(addons))
	for _, a := range addons {
		m[a.Name] = a
	}

	return &Registry{addons: m}
}

// DefaultRegistry describes the addons of the surrounding platform. The
// dataverse descriptor carries the draft/published duality the dataverse API
// only honors when asked explicitly.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Addon{Name: "osfstorage", ArchiveFolderName: "Archive of OSF Storage"},
		Addon{Name: "github", ArchiveFolderName: "Archive of GitHub"},
		Addon{Name: "dropbox", ArchiveFolderName: "Archive of Dropbox"},
		Addon{Name: "box", ArchiveFolderName: "Archive of Box"},
		Addon{Name: "googledrive", ArchiveFolderName: "Archive of Google Drive"},
		Addon{Name: "s3", ArchiveFolderName: "Archive of Amazon S3"},
		Addon{
			Name:              "dataverse",
			ArchiveFolderName: "Archive of Dataverse",
			DualRevision: &DualRevision{
				Published: Revision{Selector: "latest-published", FolderSuffix: " (published)", TargetSuffix: "-published"},
				Draft:     Revision{Selector: "latest", FolderSuffix: " (draft)", TargetSuffix: "-draft"},
			},
		},
	)
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(a Addon) {
	r.addons[a.Name] = a
}

// Lookup returns the descriptor for an addon name.
func (r *Registry) Lookup(name string) (Addon, error) {
	a, ok := r.addons[name]
	if !ok {
		return Addon{}, fmt.Errorf("unknown addon %q", name)
	}

	return a, nil
}

// Targets returns the job target names an addon contributes: one per addon,
// or one per revision for dual-revision addons.
func (r *Registry) Targets(name string) ([]string, error) {
	a, ok := r.addons[name]
	if !ok {
		return nil, fmt.Errorf("unknown addon %q", name)
	}

	if a.DualRevision == nil {
		return []string{a.Name}, nil
	}

	return []string{
		a.Name + a.DualRevision.Published.TargetSuffix,
		a.Name + a.DualRevision.Draft.TargetSuffix,
	}, nil
}

// Resolve maps a job target name back to its addon descriptor and, for
// dual-revision addons, the revision the target stands for.
func (r *Registry) Resolve(target string) (Addon, *Revision, error) {
	if a, ok := r.addons[target]; ok {
		return a, nil, nil
	}

	for _, a := range r.addons {
		if a.DualRevision == nil {
			continue
		}

		switch target {
		case a.Name + a.DualRevision.Published.TargetSuffix:
			rev := a.DualRevision.Published
			return a, &rev, nil
		case a.Name + a.DualRevision.Draft.TargetSuffix:
			rev := a.DualRevision.Draft
			return a, &rev, nil
		}
	}

	return Addon{}, nil, fmt.Errorf("unknown archive target %q", target)
}
