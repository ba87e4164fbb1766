package models

import "time"

// DocumentExtension is the file extension used by documentation files.
const DocumentExtension = ".lmay"

// EntryKind is the kind of filesystem entity a structure entry describes.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
)

// Document is one parsed documentation file. Path is the canonical
// absolute location and serves as the identity key.
type Document struct {
	Path         string                    `yaml:"-" json:"path"`
	ModTime      time.Time                 `yaml:"-" json:"mod_time"`
	Version      string                    `yaml:"version" json:"version"`
	Project      ProjectInfo               `yaml:"project" json:"project"`
	Architecture Architecture              `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	Structure    map[string]StructureEntry `yaml:"structure,omitempty" json:"structure,omitempty"`
	Dependencies Dependencies              `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Hierarchy    *HierarchyInfo            `yaml:"hierarchy,omitempty" json:"hierarchy,omitempty"`
	Interfaces   any                       `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Metadata     map[string]any            `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ProjectInfo holds the project section of a document.
type ProjectInfo struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Languages   []string `yaml:"languages,omitempty" json:"languages,omitempty"`
	Frameworks  []string `yaml:"frameworks,omitempty" json:"frameworks,omitempty"`
}

// Architecture holds the declared architectural pattern and entry points.
type Architecture struct {
	Pattern     string       `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	EntryPoints []EntryPoint `yaml:"entry_points,omitempty" json:"entry_points,omitempty"`
}

// EntryPoint is a file the project starts from, with its inferred role.
type EntryPoint struct {
	Path string `yaml:"path" json:"path"`
	Role string `yaml:"role,omitempty" json:"role,omitempty"`
}

// StructureEntry is one child reference inside a document's structure map.
// A file entry must not declare a file count other than 1, and a non-empty
// LmayFile must resolve to a loadable document.
type StructureEntry struct {
	Path            string    `yaml:"path" json:"path"`
	Kind            EntryKind `yaml:"type" json:"type"`
	LmayFile        string    `yaml:"lmay_file,omitempty" json:"lmay_file,omitempty"`
	PrimaryLanguage string    `yaml:"primary_language,omitempty" json:"primary_language,omitempty"`
	FileCount       *int      `yaml:"file_count,omitempty" json:"file_count,omitempty"`
	Description     string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Dependencies lists the external packages and internal paths a project uses.
type Dependencies struct {
	External []ExternalDependency `yaml:"external,omitempty" json:"external,omitempty"`
	Internal []InternalDependency `yaml:"internal,omitempty" json:"internal,omitempty"`
}

// ExternalDependency is a third-party package with its version constraint.
type ExternalDependency struct {
	Name      string `yaml:"name" json:"name"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty"`
	Ecosystem string `yaml:"ecosystem,omitempty" json:"ecosystem,omitempty"`
}

// InternalDependency is a path inside the project the document depends on.
type InternalDependency struct {
	Path string `yaml:"path" json:"path"`
}

// HierarchyInfo is the optional declared position of a document in the
// documentation tree. Parent is relative to the document's directory.
type HierarchyInfo struct {
	Depth  *int   `yaml:"depth,omitempty" json:"depth,omitempty"`
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`
}

// ReferenceKind tags a directed relation from a document to a path.
type ReferenceKind string

const (
	RefStructurePath      ReferenceKind = "structure_path"
	RefLmayFileLink       ReferenceKind = "lmay_file_link"
	RefEntryPoint         ReferenceKind = "entry_point"
	RefInternalDependency ReferenceKind = "internal_dependency"
	RefParent             ReferenceKind = "parent_reference"
)

// Reference is a path a document points at, as written in the document.
// Pointer locates the field inside the document. Expected is the declared
// kind of a structure path and empty for every other reference.
type Reference struct {
	Kind     ReferenceKind `json:"kind"`
	Raw      string        `json:"raw"`
	Pointer  string        `json:"pointer"`
	Expected EntryKind     `json:"expected,omitempty"`
}
